package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("SERVICE_PORT", "8085")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_NAME", "agencydesk")
	t.Setenv("JWT_ALG", "HS256")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadFromEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("SUPPORT_ADMIN_ID", "admin-42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8085, cfg.App.Port)
	assert.False(t, cfg.App.Development())
	assert.Equal(t, "agencydesk", cfg.Mongo.DB)
	assert.Equal(t, "admin-42", cfg.Support.AdminID)
}

func TestRedisAndKafkaAreOptional(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestKafkaTopicRequiredWithBrokers(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("KAFKA_BROKER", "localhost:9092")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("KAFKA_TOPIC", "chat-events")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestValidateRejectsMissingJWT(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_ALG", "none")

	_, err := Load()
	assert.Error(t, err)
}

func TestRedisPrefixDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws", cfg.Redis.Prefix)
}
