// Package auth guards a store with an optional bcrypt-hashed password.
//
// Callers see only whether a password checked out; the plaintext never
// reaches the pipeline or the store.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/redcoatwright/privatebooks/pkg/store"
)

// Cost is the bcrypt work factor.
const Cost = 12

// MinPasswordLen is the shortest accepted password, in bytes.
const MinPasswordLen = 8

var (
	// ErrInvalidPassword is returned when a password does not match the stored hash.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrPasswordTooShort is returned by ValidateNewPassword.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. Any error, including
// a malformed hash, counts as a mismatch.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateNewPassword checks a password before it is stored.
func ValidateNewPassword(password string) error {
	if len(password) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}

// SettingsStore is the part of api.Store the gate needs.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Gate manages the password settings of a store.
type Gate struct {
	settings SettingsStore
}

// NewGate creates a gate over settings.
func NewGate(settings SettingsStore) *Gate {
	return &Gate{settings: settings}
}

// Enabled reports whether a password is required.
func (g *Gate) Enabled(ctx context.Context) (bool, error) {
	v, _, err := g.settings.GetSetting(ctx, store.SettingPasswordEnabled)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// IsFirstLaunch reports whether no password decision has been recorded yet.
func (g *Gate) IsFirstLaunch(ctx context.Context) (bool, error) {
	v, ok, err := g.settings.GetSetting(ctx, store.SettingFirstLaunch)
	if err != nil {
		return false, err
	}
	return !ok || v == "true", nil
}

// Verify reports whether password matches the stored hash.
func (g *Gate) Verify(ctx context.Context, password string) (bool, error) {
	hash, ok, err := g.settings.GetSetting(ctx, store.SettingPasswordHash)
	if err != nil {
		return false, err
	}
	if !ok || hash == "" {
		return false, nil
	}
	return VerifyPassword(password, hash), nil
}

// Unlock succeeds when no password is enabled or password matches.
func (g *Gate) Unlock(ctx context.Context, password string) error {
	enabled, err := g.Enabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	ok, err := g.Verify(ctx, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidPassword
	}
	return nil
}

// Set enables password protection with password. If a password is already
// enabled, current must match it.
func (g *Gate) Set(ctx context.Context, current, password string) error {
	if err := g.Unlock(ctx, current); err != nil {
		return err
	}
	if err := ValidateNewPassword(password); err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	// Hash before flag: the flag must never point at a missing hash.
	return g.write(ctx,
		store.SettingPasswordHash, hash,
		store.SettingPasswordEnabled, "true",
		store.SettingFirstLaunch, "false",
	)
}

// Clear disables password protection. current must match the enabled password.
func (g *Gate) Clear(ctx context.Context, current string) error {
	if err := g.Unlock(ctx, current); err != nil {
		return err
	}
	return g.write(ctx,
		store.SettingPasswordEnabled, "false",
		store.SettingPasswordHash, "",
		store.SettingFirstLaunch, "false",
	)
}

// write stores key/value pairs in order.
func (g *Gate) write(ctx context.Context, kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if err := g.settings.SetSetting(ctx, kv[i], kv[i+1]); err != nil {
			return fmt.Errorf("saving %s: %w", kv[i], err)
		}
	}
	return nil
}
