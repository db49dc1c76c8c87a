package velopg

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/velopg/migrate"
	"github.com/syssam/velopg/pgwire"
)

// Options are the reconciler knobs an application keeps next to its own
// configuration. The zero value is the conservative default: destructive
// statements refused, version auto-detected, statements cached.
type Options struct {
	// AllowUnsafe lets Reconcile run plans that drop columns or data.
	AllowUnsafe bool `yaml:"allow_unsafe,omitempty"`

	// ManualPrefix overrides the constraint-name prefix that marks
	// manually managed unique constraints. Empty keeps the default.
	ManualPrefix string `yaml:"manual_prefix,omitempty"`

	// VersionOverride pins the server version instead of detecting it,
	// e.g. "9.4" for servers that misreport (Redshift-style variants).
	VersionOverride string `yaml:"version_override,omitempty"`

	// MigrationDir is where ExportPlan writes versioned plan files.
	MigrationDir string `yaml:"migration_dir,omitempty"`

	// MigrationTool selects the plan file format: golang-migrate, goose,
	// flyway, liquibase or dbmate. Empty means plain SQL files.
	MigrationTool string `yaml:"migration_tool,omitempty"`

	// NoStatementCache disables the per-connection prepared statement
	// cache.
	NoStatementCache bool `yaml:"no_statement_cache,omitempty"`
}

var errNoMigrationDir = errors.New("no migration directory configured")

// LoadOptions reads an Options YAML file. Unlike application config, a
// missing file is an error: these knobs gate destructive DDL, so a
// mistyped path must not silently fall back to defaults.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, NewConfigError(path, err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, NewConfigError(path, err)
	}
	if _, err := o.serverVersion(); err != nil {
		return Options{}, NewConfigError(path, err)
	}
	return o, nil
}

// serverVersion parses the override, if any.
func (o Options) serverVersion() (pgwire.ServerVersion, error) {
	if o.VersionOverride == "" {
		return nil, nil
	}
	return pgwire.ParseServerVersion(o.VersionOverride)
}

// connOptions translates the options into wire connection options.
func (o Options) connOptions() ([]pgwire.Option, error) {
	var opts []pgwire.Option
	v, err := o.serverVersion()
	if err != nil {
		return nil, NewConfigError("", err)
	}
	if v != nil {
		opts = append(opts, pgwire.WithServerVersion(v))
	}
	if o.NoStatementCache {
		opts = append(opts, pgwire.WithoutStatementCache())
	}
	return opts, nil
}

// migrateOptions translates the options into reconciler options.
func (o Options) migrateOptions(logger *slog.Logger) []migrate.Option {
	var opts []migrate.Option
	if o.AllowUnsafe {
		opts = append(opts, migrate.WithAllowUnsafe())
	}
	if o.ManualPrefix != "" {
		opts = append(opts, migrate.WithManualPrefix(o.ManualPrefix))
	}
	if logger != nil {
		opts = append(opts, migrate.WithLogger(logger))
	}
	if v, err := o.serverVersion(); err == nil && v != nil {
		opts = append(opts, migrate.WithServerVersion(v))
	}
	return opts
}
