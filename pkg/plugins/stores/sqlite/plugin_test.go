package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	p := &Plugin{}
	path := filepath.Join(t.TempDir(), "books.db")

	s, err := p.NewStore(json.RawMessage(fmt.Sprintf(`{"path":%q,"busyTimeout":1000}`, path)), nil)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))

	_, err = p.NewStore(json.RawMessage(`{}`), nil)
	assert.EqualError(t, err, "path is required")
}
