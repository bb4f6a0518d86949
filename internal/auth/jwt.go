package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agencydesk/support-chat-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller extracted from a token. Issuing
// tokens is the identity service's job; we only validate.
type Identity struct {
	UserID string
	Role   models.Role
}

type Validator struct {
	method string
	pub    *rsa.PublicKey
	secret []byte
}

// NewValidator builds a validator for RS256 (public key file) or HS256
// (shared secret), matching the identity service's signing config.
func NewValidator(alg, publicKeyPath, hsSecret string) (*Validator, error) {
	switch strings.ToUpper(alg) {
	case "RS256":
		b, err := os.ReadFile(publicKeyPath)
		if err != nil {
			return nil, err
		}
		block, _ := pem.Decode(b)
		if block == nil {
			return nil, errors.New("failed to decode public key")
		}
		pubIfc, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		pub, ok := pubIfc.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not rsa public key")
		}
		return &Validator{method: "RS256", pub: pub}, nil
	case "HS256":
		if hsSecret == "" {
			return nil, errors.New("hs secret required")
		}
		return &Validator{method: "HS256", secret: []byte(hsSecret)}, nil
	}
	return nil, errors.New("unsupported jwt alg")
}

func (v *Validator) Validate(tokenStr string) (*Identity, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if v.method == "RS256" {
			return v.pub, nil
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.method}))
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}

	id := &Identity{}
	if sub, ok := claims["sub"].(string); ok {
		id.UserID = sub
	} else if uid, ok := claims["user_id"].(string); ok {
		id.UserID = uid
	}
	if id.UserID == "" {
		return nil, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	id.Role = models.Role(role)
	if !id.Role.Valid() {
		id.Role = models.RoleUser
	}
	return id, nil
}
