// Package auth provides the token abstractions used to authorize calls against
// a Notification Hubs namespace.
package auth

import "time"

type (
	// TokenType represents types of tokens known for claims-based auth
	TokenType string

	// Token contains all of the information needed to authorize a request
	Token struct {
		// TokenType is the type of token
		TokenType TokenType
		Token     string
		Expiry    time.Time
	}

	// TokenProvider abstracts the fetching of authorization tokens
	TokenProvider interface {
		GetToken(audience string) (*Token, error)
	}
)

const (
	// TokenTypeSAS is the type of token to be used for Shared Access Signature tokens
	TokenTypeSAS TokenType = "servicebus.windows.net:sastoken"
)

// NewToken constructs a new auth token
func NewToken(tokenType TokenType, token string, expiry time.Time) *Token {
	return &Token{
		TokenType: tokenType,
		Token:     token,
		Expiry:    expiry,
	}
}

// Expired reports whether the token's expiry has passed
func (t *Token) Expired() bool {
	return !time.Now().Before(t.Expiry)
}
