// Package velopg reconciles entity models against live PostgreSQL schemas.
//
// The root package is a thin facade: Open dials a single wire connection
// (pgwire), compiles the desired model (schema) and reconciles it against
// the catalog (migrate). Applications that already hold a *sql.DB pool
// drive the same engine through the stdsql bridge instead:
//
//	drv, err := stdsql.Open(dsn)
//	m := migrate.NewMigrate(drv)
//	plan, err := m.Apply(ctx, entities...)
package velopg

import (
	"context"
	"log/slog"

	"github.com/syssam/velopg/migrate"
	"github.com/syssam/velopg/pgwire"
	"github.com/syssam/velopg/schema"
)

// Client reconciles entity models over one wire connection.
type Client struct {
	conn    *pgwire.Conn
	migrate *migrate.Migrate
	options Options
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	options Options
	logger  *slog.Logger
}

// WithOptions applies a whole options set, typically loaded from a YAML
// file with LoadOptions.
func WithOptions(o Options) ClientOption {
	return func(c *clientConfig) {
		c.options = o
	}
}

// WithLogger sets the logger plan summaries and statements are logged to.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// Open dials the server and returns a Client bound to that connection.
func Open(ctx context.Context, connString string, opts ...ClientOption) (*Client, error) {
	cfg, connOpts, err := newClientConfig(opts)
	if err != nil {
		return nil, err
	}
	conn, err := pgwire.Connect(ctx, connString, connOpts...)
	if err != nil {
		return nil, NewConnError(err)
	}
	return newClient(conn, cfg), nil
}

// NewClient wraps an already-open Queryer. This is how tests and custom
// transports plug in.
func NewClient(ctx context.Context, q pgwire.Queryer, opts ...ClientOption) (*Client, error) {
	cfg, connOpts, err := newClientConfig(opts)
	if err != nil {
		return nil, err
	}
	conn, err := pgwire.NewConn(ctx, q, connOpts...)
	if err != nil {
		return nil, NewConnError(err)
	}
	return newClient(conn, cfg), nil
}

func newClientConfig(opts []ClientOption) (clientConfig, []pgwire.Option, error) {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	connOpts, err := cfg.options.connOptions()
	if err != nil {
		return cfg, nil, err
	}
	return cfg, connOpts, nil
}

func newClient(conn *pgwire.Conn, cfg clientConfig) *Client {
	return &Client{
		conn:    conn,
		migrate: migrate.NewMigrate(migrate.Wire(conn), cfg.options.migrateOptions(cfg.logger)...),
		options: cfg.options,
	}
}

// Conn returns the underlying wire connection for direct queries.
func (c *Client) Conn() *pgwire.Conn {
	return c.conn
}

// Version reports the server version the connection gates capabilities on.
func (c *Client) Version() pgwire.ServerVersion {
	return c.conn.Version()
}

// Capabilities reports what the connected server version supports.
func (c *Client) Capabilities() pgwire.Capabilities {
	return c.conn.Capabilities()
}

// Plan computes the reconciliation plan for the given entities without
// executing anything.
func (c *Client) Plan(ctx context.Context, entities ...*schema.Entity) (*migrate.Plan, error) {
	return c.migrate.Plan(ctx, entities...)
}

// Reconcile computes and runs the reconciliation plan. The computed plan
// is returned even when running it fails, so callers can report what was
// attempted.
func (c *Client) Reconcile(ctx context.Context, entities ...*schema.Entity) (*migrate.Plan, error) {
	return c.migrate.Apply(ctx, entities...)
}

// Inspector returns a catalog inspector bound to this connection.
func (c *Client) Inspector(ctx context.Context) (*migrate.Inspector, error) {
	return c.migrate.Inspector(ctx)
}

// ExportPlan computes the plan and writes it into the migration directory
// named by the client options, formatted for the configured tool.
func (c *Client) ExportPlan(ctx context.Context, name string, entities ...*schema.Entity) (*migrate.Plan, error) {
	if c.options.MigrationDir == "" {
		return nil, NewConfigError("", errNoMigrationDir)
	}
	dir, err := migrate.DirFor(c.options.MigrationTool, c.options.MigrationDir)
	if err != nil {
		return nil, err
	}
	plan, err := c.migrate.Plan(ctx, entities...)
	if err != nil {
		return nil, err
	}
	if err := migrate.WritePlan(plan, dir, name); err != nil {
		return plan, err
	}
	return plan, nil
}

// Close releases the underlying connection.
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// DryRun computes the plan the given entities produce against an empty
// database. No connection is used.
func DryRun(entities ...*schema.Entity) (*migrate.Plan, error) {
	return migrate.DryRun(entities...)
}
