// Package tokencodec signs and verifies the HS256 bearer tokens handed to
// notification producers, subscribers and logged-in users.
package tokencodec

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const (
	MinSecretLength = 32
	ClockSkew       = 60 * time.Second
)

var (
	ErrWeakSecret       = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	ErrInvalidSignature = errors.New("invalid token signature or format")
	ErrExpired          = errors.New("token expired")
	ErrWrongKind        = errors.New("unexpected token kind")
)

// Claims is the decoded content of a bearer token. Subject is the token
// record id for notify tokens and the user id for user sessions.
type Claims struct {
	Subject   string
	Usage     string
	Kind      domain.TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

type signedClaims struct {
	Usage string           `json:"usage"`
	Kind  domain.TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret []byte
	parser *jwt.Parser
}

func New(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Codec{
		secret: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(ClockSkew),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

func (c *Codec) Issue(claims Claims) (string, error) {
	if !claims.Kind.Valid() {
		return "", fmt.Errorf("issue token: %w", ErrWrongKind)
	}
	sc := signedClaims{
		Usage: claims.Usage,
		Kind:  claims.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        claims.ID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, sc).SignedString(c.secret)
}

// Verify checks signature, expiry (with ClockSkew tolerance) and the kind tag.
func (c *Codec) Verify(token string, expected domain.TokenKind) (Claims, error) {
	sc := &signedClaims{}
	_, err := c.parser.ParseWithClaims(token, sc, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if sc.Kind != expected {
		return Claims{}, ErrWrongKind
	}
	return sc.decode(), nil
}

func (sc *signedClaims) decode() Claims {
	out := Claims{
		Subject: sc.Subject,
		Usage:   sc.Usage,
		Kind:    sc.Kind,
		ID:      sc.ID,
	}
	if sc.IssuedAt != nil {
		out.IssuedAt = sc.IssuedAt.Time.UTC()
	}
	if sc.ExpiresAt != nil {
		out.ExpiresAt = sc.ExpiresAt.Time.UTC()
	}
	return out
}

// Hash returns the hex SHA-256 digest under which a bearer string is stored.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
