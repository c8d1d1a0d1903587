package watermark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "var_storage.json"), zap.NewNop())
}

func TestLoadReturnsZeroWhenNeverPersisted(t *testing.T) {
	s := newTestStore(t)

	count, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(103))
	count, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(103), count)

	// Overwrite keeps only the latest value.
	require.NoError(t, s.Save(250))
	count, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(250), count)
}

func TestSaveRejectsNegativeCount(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Save(-1), ErrNegativeCount)
}

func TestSaveKeepsPythonCompatibleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var_storage.json")
	s := NewStore(path, zap.NewNop())

	require.NoError(t, s.Save(42))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prev_rows_number":42}`, string(raw))
}

func TestLoadFailsOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var_storage.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0o644))

	s := NewStore(path, zap.NewNop())
	_, err := s.Load()
	assert.Error(t, err)
}
