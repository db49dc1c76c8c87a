// Package migrate reconciles desired entity models against a live
// PostgreSQL schema. It introspects the server catalogs, computes the
// alteration operations that close the gap, renders them as DDL, and
// either executes the plan or hands it to a migration directory.
//
// Reconciliation is conservative: a plan that would destroy data the
// desired model did not account for is refused in full, with the
// offending statements reported, unless unsafe execution is enabled.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/velopg/pgwire"
	"github.com/syssam/velopg/schema"
)

// Migrate reconciles desired entity models against the connected database.
// It runs on a single connection and does not open transactions itself;
// callers wanting an atomic apply wrap it in one.
type Migrate struct {
	exec         ExecQuerier
	logger       *slog.Logger
	version      pgwire.ServerVersion
	allowUnsafe  bool
	manualPrefix string
}

// Option configures the reconciler.
type Option func(*Migrate)

// WithAllowUnsafe lets Apply run destructive statements instead of
// refusing the plan.
func WithAllowUnsafe() Option {
	return func(m *Migrate) {
		m.allowUnsafe = true
	}
}

// WithManualPrefix overrides the prefix marking unique constraints that
// reconciliation must leave alone.
func WithManualPrefix(prefix string) Option {
	return func(m *Migrate) {
		m.manualPrefix = prefix
	}
}

// WithLogger sets the logger plans are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrate) {
		m.logger = l
	}
}

// WithServerVersion pins the version used for catalog gating instead of
// detecting it from the connection.
func WithServerVersion(v pgwire.ServerVersion) Option {
	return func(m *Migrate) {
		m.version = v
	}
}

// NewMigrate returns a reconciler running on the given statement surface.
func NewMigrate(exec ExecQuerier, opts ...Option) *Migrate {
	m := &Migrate{
		exec:         exec,
		logger:       slog.Default(),
		manualPrefix: ManualPrefix,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Plan computes the ordered alteration plan for the given entities without
// executing anything.
func (m *Migrate) Plan(ctx context.Context, entities ...*schema.Entity) (*Plan, error) {
	tables, err := compileAll(entities)
	if err != nil {
		return nil, err
	}
	version, err := m.serverVersion(ctx)
	if err != nil {
		return nil, err
	}
	in := NewInspector(m.exec, version)
	var ops []Op
	for _, t := range tables {
		live, err := in.Table(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		ops = append(ops, diffTable(t, live, m.manualPrefix)...)
	}
	plan := newPlan(ops)
	m.logger.Debug("migrate: plan computed",
		"plan", plan.ID,
		"statements", len(plan.Steps),
		"unsafe", len(plan.UnsafeStatements()),
	)
	return plan, nil
}

// Apply computes the plan for the entities and executes it. The returned
// plan reports what ran, or what was refused when the error is an
// UnsafeError.
func (m *Migrate) Apply(ctx context.Context, entities ...*schema.Entity) (*Plan, error) {
	plan, err := m.Plan(ctx, entities...)
	if err != nil {
		return nil, err
	}
	if err := m.Run(ctx, plan); err != nil {
		return plan, err
	}
	return plan, nil
}

// Run executes a previously computed plan. When the plan carries
// destructive statements and unsafe execution is off, nothing runs and the
// statements come back inside an UnsafeError.
func (m *Migrate) Run(ctx context.Context, plan *Plan) error {
	if !plan.Safe() && !m.allowUnsafe {
		return &UnsafeError{Statements: plan.UnsafeStatements()}
	}
	for _, step := range plan.Steps {
		m.logger.Debug("migrate: exec", "plan", plan.ID, "sql", step.SQL)
		if err := m.exec.Exec(ctx, step.SQL); err != nil {
			return &StatementError{Statement: step.SQL, Err: err}
		}
	}
	return nil
}

// Inspector returns a catalog reader gated on the connection's server
// version.
func (m *Migrate) Inspector(ctx context.Context) (*Inspector, error) {
	version, err := m.serverVersion(ctx)
	if err != nil {
		return nil, err
	}
	return NewInspector(m.exec, version), nil
}

func (m *Migrate) serverVersion(ctx context.Context) (pgwire.ServerVersion, error) {
	if m.version != nil {
		return m.version, nil
	}
	v, err := detectServerVersion(ctx, m.exec)
	if err != nil {
		return nil, err
	}
	m.version = v
	return v, nil
}

// DryRun computes the creation plan for the entities against an empty
// database. No connection is involved, so the plan is what a fresh deploy
// would execute.
func DryRun(entities ...*schema.Entity) (*Plan, error) {
	tables, err := compileAll(entities)
	if err != nil {
		return nil, err
	}
	var ops []Op
	for _, t := range tables {
		ops = append(ops, createOps(t)...)
	}
	return newPlan(ops), nil
}

func compileAll(entities []*schema.Entity) ([]*schema.Table, error) {
	tables := make([]*schema.Table, 0, len(entities))
	seen := make(map[string]bool, len(entities))
	var errs []error
	for _, e := range entities {
		t, err := schema.Compile(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("migrate: entities %q compile to the same table", t.Name))
			continue
		}
		seen[t.Name] = true
		tables = append(tables, t)
	}
	if err := NewAggregateError(errs...); err != nil {
		return nil, err
	}
	return tables, nil
}
