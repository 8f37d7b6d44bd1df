// Package scope carries the authenticated identity of a gateway request.
//
// Authentication itself happens upstream: callers present a service-to-service
// HS256 bearer token whose claims name the tenant and the logged-in end-user
// principal. The scope is passed explicitly into issuance and verification so
// those operations stay pure and testable rather than reading ambient state.
package scope

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope identifies the tenant and principal a request runs under.
type Scope struct {
	// TID is the tenant the request was made under.
	TID int32
	// Principal is the logged-in end-user the payment is being made for.
	Principal uuid.UUID
}

var (
	ErrInvalidToken = errors.New("scope: invalid bearer token")
	ErrNoTenant     = errors.New("scope: token carries no tenant id")
	ErrNoPrincipal  = errors.New("scope: token carries no principal")
)

type claims struct {
	TID int32 `json:"tid"`
	jwt.RegisteredClaims
}

// Parser validates bearer tokens and extracts the request scope.
type Parser struct {
	key []byte
}

// NewParser returns a Parser verifying tokens with the shared service key.
func NewParser(key []byte) *Parser {
	return &Parser{key: key}
}

// Parse validates raw and returns the scope it asserts. The token must be
// HS256-signed with the shared key and unexpired; the tenant comes from the
// tid claim and the principal from the subject.
func (p *Parser) Parse(raw string) (Scope, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		return p.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Scope{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.TID == 0 {
		return Scope{}, ErrNoTenant
	}
	principal, err := uuid.Parse(c.Subject)
	if err != nil {
		return Scope{}, ErrNoPrincipal
	}
	return Scope{TID: c.TID, Principal: principal}, nil
}

// Sign mints a token asserting sc, used by tests and the ops CLI to talk to a
// locally running gateway.
func (p *Parser) Sign(sc Scope) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TID: sc.TID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: sc.Principal.String(),
		},
	})
	return token.SignedString(p.key)
}
