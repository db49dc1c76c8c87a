package velopg_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velopg"
	"github.com/syssam/velopg/pgwire"
)

func writeOptions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "velopg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOptions(t *testing.T) {
	path := writeOptions(t, `
allow_unsafe: true
manual_prefix: keep_
version_override: "12.4"
migration_dir: migrations
migration_tool: goose
no_statement_cache: true
`)
	o, err := velopg.LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, velopg.Options{
		AllowUnsafe:      true,
		ManualPrefix:     "keep_",
		VersionOverride:  "12.4",
		MigrationDir:     "migrations",
		MigrationTool:    "goose",
		NoStatementCache: true,
	}, o)
}

func TestLoadOptionsEmptyFile(t *testing.T) {
	path := writeOptions(t, "")
	o, err := velopg.LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, velopg.Options{}, o)
}

func TestLoadOptionsMissingFile(t *testing.T) {
	_, err := velopg.LoadOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, velopg.IsConfigError(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadOptionsBadYAML(t *testing.T) {
	path := writeOptions(t, "allow_unsafe: [not, a, bool]")
	_, err := velopg.LoadOptions(path)
	require.Error(t, err)
	assert.True(t, velopg.IsConfigError(err))
}

func TestLoadOptionsBadVersionOverride(t *testing.T) {
	path := writeOptions(t, `version_override: "beta"`)
	_, err := velopg.LoadOptions(path)
	require.Error(t, err)
	assert.True(t, velopg.IsConfigError(err))
	var ve *pgwire.VersionError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, "beta", ve.Raw)
}
