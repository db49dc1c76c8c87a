package velopg_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velopg"
	"github.com/syssam/velopg/pgwire"
)

// fakeStream serves canned rows in wire text format.
type fakeStream struct {
	rows [][][]byte
	pos  int
	tag  pgconn.CommandTag
}

func (s *fakeStream) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (s *fakeStream) NextRow() bool {
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Values() [][]byte { return s.rows[s.pos-1] }

func (s *fakeStream) Close() (pgconn.CommandTag, error) { return s.tag, nil }

// fakeQueryer plays an empty-catalog server: introspection queries come
// back empty, everything else succeeds.
type fakeQueryer struct {
	status  map[string]string
	names   map[string]string
	execLog []string
	closed  bool
}

func newFakeQueryer() *fakeQueryer {
	return &fakeQueryer{
		status: map[string]string{"server_version": "13.2"},
		names:  map[string]string{},
	}
}

func textFields(names ...string) []pgconn.FieldDescription {
	fields := make([]pgconn.FieldDescription, len(names))
	for i, name := range names {
		fields[i] = pgconn.FieldDescription{Name: name, DataTypeOID: pgtype.TextOID}
	}
	return fields
}

func (q *fakeQueryer) Prepare(_ context.Context, name, query string) (*pgconn.StatementDescription, error) {
	q.names[name] = query
	sd := &pgconn.StatementDescription{Name: name, SQL: query}
	switch {
	case strings.Contains(query, "information_schema.columns"):
		sd.Fields = textFields(
			"column_name", "is_nullable", "udt_name", "numeric_precision",
			"numeric_scale", "character_maximum_length", "column_default",
			"generation_expression",
		)
	case strings.Contains(query, "EXISTS"):
		sd.Fields = []pgconn.FieldDescription{{Name: "exists", DataTypeOID: pgtype.BoolOID}}
	}
	return sd, nil
}

func (q *fakeQueryer) Execute(_ context.Context, name string, _ [][]byte) pgwire.ResultStream {
	query := q.names[name]
	q.execLog = append(q.execLog, query)
	switch {
	case strings.Contains(query, "information_schema.columns"):
		return &fakeStream{tag: pgconn.NewCommandTag("SELECT 0")}
	case strings.Contains(query, "EXISTS"):
		return &fakeStream{
			rows: [][][]byte{{[]byte("f")}},
			tag:  pgconn.NewCommandTag("SELECT 1"),
		}
	default:
		return &fakeStream{tag: pgconn.NewCommandTag("CREATE TABLE")}
	}
}

func (q *fakeQueryer) ParameterStatus(key string) string { return q.status[key] }

func (q *fakeQueryer) Close(context.Context) error {
	q.closed = true
	return nil
}

// ddl filters the statement log down to schema changes.
func (q *fakeQueryer) ddl() []string {
	var out []string
	for _, query := range q.execLog {
		if !strings.Contains(query, "information_schema") && !strings.Contains(query, "EXISTS") {
			out = append(out, query)
		}
	}
	return out
}

func TestClientReconcile(t *testing.T) {
	q := newFakeQueryer()
	client, err := velopg.NewClient(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, pgwire.ServerVersion{13, 2}, client.Version())
	assert.True(t, client.Capabilities().NativeUpsert)

	// Planning alone must not change the database.
	plan, err := client.Plan(context.Background(), entitiesOf("User")...)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Empty(t, q.ddl())

	plan, err = client.Reconcile(context.Background(), entitiesOf("User")...)
	require.NoError(t, err)
	require.True(t, plan.Safe())
	require.Equal(t, []string{
		`CREATE TABLE "users" ("id" SERIAL8 PRIMARY KEY, "name" TEXT NOT NULL)`,
	}, q.ddl())
}

func TestClientVersionOverride(t *testing.T) {
	q := newFakeQueryer() // reports 13.2
	client, err := velopg.NewClient(context.Background(), q,
		velopg.WithOptions(velopg.Options{VersionOverride: "9.4"}))
	require.NoError(t, err)

	assert.Equal(t, pgwire.ServerVersion{9, 4}, client.Version())
	assert.False(t, client.Capabilities().NativeUpsert)
}

func TestClientBadVersionOverride(t *testing.T) {
	_, err := velopg.NewClient(context.Background(), newFakeQueryer(),
		velopg.WithOptions(velopg.Options{VersionOverride: "beta"}))
	require.Error(t, err)
	assert.True(t, velopg.IsConfigError(err))
}

func TestClientLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	q := newFakeQueryer()
	client, err := velopg.NewClient(context.Background(), q, velopg.WithLogger(logger))
	require.NoError(t, err)

	_, err = client.Reconcile(context.Background(), entitiesOf("User")...)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "plan computed")
}

func TestClientExportPlan(t *testing.T) {
	dir := t.TempDir()
	q := newFakeQueryer()
	client, err := velopg.NewClient(context.Background(), q,
		velopg.WithOptions(velopg.Options{MigrationDir: dir}))
	require.NoError(t, err)

	plan, err := client.ExportPlan(context.Background(), "add_users", entitiesOf("User")...)
	require.NoError(t, err)
	require.False(t, plan.Empty())
	require.Empty(t, q.ddl(), "exporting a plan must not run it")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	var names, contents strings.Builder
	for _, e := range entries {
		names.WriteString(e.Name() + "\n")
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		contents.Write(data)
	}
	assert.Contains(t, names.String(), "add_users")
	assert.Contains(t, contents.String(), `CREATE TABLE "users"`)
}

func TestClientExportPlanNoChanges(t *testing.T) {
	q := newFakeQueryer()
	client, err := velopg.NewClient(context.Background(), q,
		velopg.WithOptions(velopg.Options{MigrationDir: t.TempDir()}))
	require.NoError(t, err)

	_, err = client.ExportPlan(context.Background(), "noop")
	assert.ErrorIs(t, err, velopg.ErrNoChanges)
}

func TestClientExportPlanNoDir(t *testing.T) {
	client, err := velopg.NewClient(context.Background(), newFakeQueryer())
	require.NoError(t, err)

	_, err = client.ExportPlan(context.Background(), "add_users", entitiesOf("User")...)
	require.Error(t, err)
	assert.True(t, velopg.IsConfigError(err))
}

func TestClientClose(t *testing.T) {
	q := newFakeQueryer()
	client, err := velopg.NewClient(context.Background(), q)
	require.NoError(t, err)
	require.NoError(t, client.Close(context.Background()))
	assert.True(t, q.closed)
}

func TestOpenBadConnString(t *testing.T) {
	_, err := velopg.Open(context.Background(), "://not-a-dsn")
	require.Error(t, err)
	assert.True(t, velopg.IsConnError(err))
}

func TestDryRun(t *testing.T) {
	plan, err := velopg.DryRun(entitiesOf("User", "Group")...)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`CREATE TABLE "users" ("id" SERIAL8 PRIMARY KEY, "name" TEXT NOT NULL)`,
		`CREATE TABLE "groups" ("id" SERIAL8 PRIMARY KEY, "name" TEXT NOT NULL)`,
	}, plan.Statements())
}
