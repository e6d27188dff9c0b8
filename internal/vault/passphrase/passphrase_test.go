package passphrase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSource(t *testing.T) {
	t.Setenv("TEST_VAULT_PASSPHRASE", "from-env")

	src, err := NewEnvSource("TEST_VAULT_PASSPHRASE")
	require.NoError(t, err)

	got, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestEnvSource_UnsetVariable(t *testing.T) {
	_, err := NewEnvSource("TEST_VAULT_PASSPHRASE_UNSET")
	assert.Error(t, err)
}

func TestEnvSource_EmptyKey(t *testing.T) {
	_, err := NewEnvSource("")
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passphrase")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0600))

	src, err := NewFileSource(path)
	require.NoError(t, err)

	got, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-file", got, "surrounding whitespace is trimmed")
}

func TestFileSource_InsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passphrase")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0644))

	src, err := NewFileSource(path)
	require.NoError(t, err)

	_, err = src.Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestFileSource_MissingFile(t *testing.T) {
	src, err := NewFileSource(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)

	_, err = src.Read(context.Background())
	assert.Error(t, err)
}

func TestFileSource_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passphrase")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0600))

	src, err := NewFileSource(path)
	require.NoError(t, err)

	_, err = src.Read(context.Background())
	assert.Error(t, err)
}

func TestSources_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	t.Setenv("TEST_VAULT_PASSPHRASE", "from-env")
	env, err := NewEnvSource("TEST_VAULT_PASSPHRASE")
	require.NoError(t, err)
	_, err = env.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
