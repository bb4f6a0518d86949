package users

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/agencydesk/support-chat-service/internal/models"
)

// MongoDirectory reads the identity service's "users" collection. The chat
// service never writes to it. Account ids are ObjectIDs there; chat
// participants reference them by hex string, so this adapter converts at
// the boundary.
type MongoDirectory struct {
	coll *mongo.Collection

	// pinnedAdminID short-circuits the role query when the deployment pins
	// a support identity in config.
	pinnedAdminID string
}

func NewMongoDirectory(db *mongo.Database, pinnedAdminID string) *MongoDirectory {
	return &MongoDirectory{coll: db.Collection("users"), pinnedAdminID: pinnedAdminID}
}

type userDoc struct {
	ID     primitive.ObjectID `bson:"_id"`
	Name   string             `bson:"name"`
	Email  string             `bson:"email"`
	Avatar string             `bson:"avatar,omitempty"`
	Role   models.Role        `bson:"role"`
}

func (d userDoc) user() *User {
	return &User{
		ID:     d.ID.Hex(),
		Name:   d.Name,
		Email:  d.Email,
		Avatar: d.Avatar,
		Role:   d.Role,
	}
}

func (d *MongoDirectory) FindAdmin(ctx context.Context) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if d.pinnedAdminID != "" {
		u, err := d.Get(ctx, d.pinnedAdminID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ErrNoAdmin
		}
		return u, nil
	}

	var doc userDoc
	if err := d.coll.FindOne(ctx, bson.M{"role": models.RoleAdmin}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoAdmin
		}
		return nil, err
	}
	return doc.user(), nil
}

func (d *MongoDirectory) Get(ctx context.Context, id string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc userDoc
	if err := d.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return doc.user(), nil
}
