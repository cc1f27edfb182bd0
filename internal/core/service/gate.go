package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

// Secret decides whether a submitted passcode matches the configured one.
type Secret interface {
	Match(code string) bool
}

// PlainSecret compares with exact, case-sensitive equality.
type PlainSecret string

func (p PlainSecret) Match(code string) bool {
	return subtle.ConstantTimeCompare([]byte(p), []byte(code)) == 1
}

// BcryptSecret holds a bcrypt hash of the passcode.
type BcryptSecret []byte

func (b BcryptSecret) Match(code string) bool {
	return bcrypt.CompareHashAndPassword(b, []byte(code)) == nil
}

// Gate grants per-user authorization on a passcode match. A grant lasts
// for the lifetime of the session store; there is no lockout.
type Gate struct {
	sessions port.SessionRepository
	secret   Secret
}

func NewGate(sessions port.SessionRepository, secret Secret) *Gate {
	return &Gate{sessions: sessions, secret: secret}
}

func (g *Gate) Check(ctx context.Context, userID string) (bool, error) {
	sess, err := g.sessions.GetSession(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get session: %w", err)
	}
	return sess.Authorized, nil
}

// Attempt returns true when code matches and the user is now authorized.
func (g *Gate) Attempt(ctx context.Context, userID, code string) (bool, error) {
	sess, err := g.sessions.GetSession(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get session: %w", err)
	}
	if sess.Authorized {
		return true, nil
	}
	if !g.secret.Match(code) {
		return false, nil
	}

	sess.Authorized = true
	if err := g.sessions.SaveSession(ctx, sess); err != nil {
		return false, fmt.Errorf("save session: %w", err)
	}
	return true, nil
}
