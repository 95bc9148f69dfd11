package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcoatwright/privatebooks/pkg/store"
)

type memSettings struct {
	values  map[string]string
	failSet bool
}

func newMemSettings() *memSettings {
	return &memSettings{values: map[string]string{}}
}

func (m *memSettings) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) SetSetting(_ context.Context, key, value string) error {
	if m.failSet {
		return errors.New("read-only")
	}
	m.values[key] = value
	return nil
}

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("correct horse", hash))
	assert.False(t, VerifyPassword("wrong horse", hash))
	assert.False(t, VerifyPassword("correct horse", "not-a-bcrypt-hash"))
}

func TestValidateNewPassword(t *testing.T) {
	assert.ErrorIs(t, ValidateNewPassword("short"), ErrPasswordTooShort)
	assert.NoError(t, ValidateNewPassword("12345678"))
}

func TestGate_Lifecycle(t *testing.T) {
	ctx := context.Background()
	settings := newMemSettings()
	g := NewGate(settings)

	first, err := g.IsFirstLaunch(ctx)
	require.NoError(t, err)
	assert.True(t, first)

	enabled, err := g.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.NoError(t, g.Unlock(ctx, ""), "no password means unlocked")

	assert.ErrorIs(t, g.Set(ctx, "", "short"), ErrPasswordTooShort)
	require.NoError(t, g.Set(ctx, "", "hunter2hunter2"))

	enabled, err = g.Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.NotContains(t, settings.values[store.SettingPasswordHash], "hunter2")

	first, err = g.IsFirstLaunch(ctx)
	require.NoError(t, err)
	assert.False(t, first)

	assert.NoError(t, g.Unlock(ctx, "hunter2hunter2"))
	assert.ErrorIs(t, g.Unlock(ctx, "nope"), ErrInvalidPassword)

	// Changing requires the current password.
	assert.ErrorIs(t, g.Set(ctx, "nope", "another-password"), ErrInvalidPassword)
	require.NoError(t, g.Set(ctx, "hunter2hunter2", "another-password"))
	assert.NoError(t, g.Unlock(ctx, "another-password"))

	assert.ErrorIs(t, g.Clear(ctx, "hunter2hunter2"), ErrInvalidPassword)
	require.NoError(t, g.Clear(ctx, "another-password"))

	enabled, err = g.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.NoError(t, g.Unlock(ctx, "anything"))
}

func TestGate_WriteFailure(t *testing.T) {
	settings := newMemSettings()
	settings.failSet = true

	err := NewGate(settings).Set(context.Background(), "", "long-enough")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving password_hash")
}
