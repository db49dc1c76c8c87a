package pgwire

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velopg/pgval"
)

// fakeStream serves canned rows and counts how often it is released.
type fakeStream struct {
	fields   []pgconn.FieldDescription
	rows     [][][]byte
	pos      int
	tag      pgconn.CommandTag
	closeErr error
	closes   int
}

func (s *fakeStream) FieldDescriptions() []pgconn.FieldDescription { return s.fields }

func (s *fakeStream) NextRow() bool {
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Values() [][]byte { return s.rows[s.pos-1] }

func (s *fakeStream) Close() (pgconn.CommandTag, error) {
	s.closes++
	return s.tag, s.closeErr
}

// fakeQueryer serves canned results by query text and records activity.
type fakeQueryer struct {
	fields   map[string][]pgconn.FieldDescription
	results  map[string]*fakeStream
	status   map[string]string
	names    map[string]string
	execLog  []string
	params   map[string][][]byte
	prepares int
	closed   bool
}

func newFakeQueryer() *fakeQueryer {
	return &fakeQueryer{
		fields:  map[string][]pgconn.FieldDescription{},
		results: map[string]*fakeStream{},
		status:  map[string]string{},
		names:   map[string]string{},
		params:  map[string][][]byte{},
	}
}

func (q *fakeQueryer) Prepare(_ context.Context, name, query string) (*pgconn.StatementDescription, error) {
	q.prepares++
	q.names[name] = query
	return &pgconn.StatementDescription{Name: name, SQL: query, Fields: q.fields[query]}, nil
}

func (q *fakeQueryer) Execute(_ context.Context, name string, params [][]byte) ResultStream {
	query := q.names[name]
	q.execLog = append(q.execLog, query)
	q.params[query] = params
	if rs, ok := q.results[query]; ok {
		return rs
	}
	return &fakeStream{tag: pgconn.NewCommandTag("OK")}
}

func (q *fakeQueryer) ParameterStatus(key string) string { return q.status[key] }

func (q *fakeQueryer) Close(context.Context) error {
	q.closed = true
	return nil
}

func pinned(v ...int) Option { return WithServerVersion(ServerVersion(v)) }

func TestConnQuery(t *testing.T) {
	q := newFakeQueryer()
	const query = "SELECT id, name FROM users WHERE id > $1"
	q.fields[query] = []pgconn.FieldDescription{
		{Name: "id", DataTypeOID: pgtype.Int8OID},
		{Name: "name", DataTypeOID: pgtype.TextOID},
	}
	stream := &fakeStream{
		rows: [][][]byte{
			{[]byte("1"), []byte("ann")},
			{[]byte("2"), nil},
		},
		tag: pgconn.NewCommandTag("SELECT 2"),
	}
	q.results[query] = stream

	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)

	rows, err := c.Query(context.Background(), query, pgval.Int64(7))
	require.NoError(t, err)
	require.Len(t, rows.Fields(), 2)

	require.True(t, rows.Next())
	assert.Equal(t, []pgval.Value{pgval.Int64(1), pgval.Text("ann")}, rows.Values())
	assert.Equal(t, 1, rows.Count())

	require.True(t, rows.Next())
	assert.Equal(t, []pgval.Value{pgval.Int64(2), pgval.Null{}}, rows.Values())
	assert.Equal(t, 2, rows.Count())

	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
	assert.Equal(t, "SELECT 2", rows.CommandTag().String())

	// exhausting released the cursor; more closes must not release again
	require.NoError(t, rows.Close())
	require.NoError(t, rows.Close())
	assert.Equal(t, 1, stream.closes)

	assert.Equal(t, [][]byte{[]byte("7")}, q.params[query])
}

func TestConnQueryEarlyClose(t *testing.T) {
	q := newFakeQueryer()
	const query = "SELECT n FROM seq"
	q.fields[query] = []pgconn.FieldDescription{{Name: "n", DataTypeOID: pgtype.Int4OID}}
	stream := &fakeStream{rows: [][][]byte{{[]byte("1")}, {[]byte("2")}, {[]byte("3")}}}
	q.results[query] = stream

	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)
	rows, err := c.Query(context.Background(), query)
	require.NoError(t, err)

	require.True(t, rows.Next())
	require.NoError(t, rows.Close())
	require.NoError(t, rows.Close())
	assert.Equal(t, 1, stream.closes)
	assert.Equal(t, 1, rows.Count())
}

func TestConnQueryDecodeFailure(t *testing.T) {
	q := newFakeQueryer()
	const query = "SELECT n FROM bad"
	q.fields[query] = []pgconn.FieldDescription{{Name: "n", DataTypeOID: pgtype.Int8OID}}
	stream := &fakeStream{rows: [][][]byte{{[]byte("abc")}}}
	q.results[query] = stream

	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)
	rows, err := c.Query(context.Background(), query)
	require.NoError(t, err)

	assert.False(t, rows.Next())
	require.Error(t, rows.Err())
	var de *DecodeError
	assert.ErrorAs(t, rows.Err(), &de)
	assert.Equal(t, 1, stream.closes)
	assert.ErrorIs(t, rows.Close(), rows.Err())
	assert.Equal(t, 1, stream.closes)
}

func TestConnQueryNonTuple(t *testing.T) {
	q := newFakeQueryer()
	const query = "DELETE FROM users"
	stream := &fakeStream{tag: pgconn.NewCommandTag("DELETE 3")}
	q.results[query] = stream

	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)
	rows, err := c.Query(context.Background(), query)
	assert.Nil(t, rows)
	require.Error(t, err)
	var re *ResultError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "DELETE 3", re.Tag)
	// the statement still ran and its result was drained
	assert.Equal(t, 1, stream.closes)
}

func TestConnExec(t *testing.T) {
	q := newFakeQueryer()
	const query = `CREATE TABLE "users"("id" BIGSERIAL PRIMARY KEY)`
	q.results[query] = &fakeStream{tag: pgconn.NewCommandTag("CREATE TABLE")}

	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)
	tag, err := c.Exec(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE", tag.String())
	assert.Equal(t, []string{query}, q.execLog)
}

func TestConnExecServerError(t *testing.T) {
	q := newFakeQueryer()
	const query = "CREATE TABLE t()"
	pgErr := &pgconn.PgError{Severity: "ERROR", Code: "42P07", Message: `relation "t" already exists`}
	q.results[query] = &fakeStream{closeErr: pgErr}

	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)
	_, err = c.Exec(context.Background(), query)
	require.Error(t, err)
	var got *pgconn.PgError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "42P07", got.Code)
}

func TestConnStatementCache(t *testing.T) {
	q := newFakeQueryer()
	const query = "SELECT 1"
	q.fields[query] = []pgconn.FieldDescription{{Name: "?column?", DataTypeOID: pgtype.Int4OID}}

	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		rows, err := c.Query(context.Background(), query)
		require.NoError(t, err)
		rows.Close()
	}
	assert.Equal(t, 1, q.prepares)

	_, err = c.Exec(context.Background(), "SELECT 2")
	require.NoError(t, err)
	assert.Equal(t, 2, q.prepares)
}

func TestConnWithoutStatementCache(t *testing.T) {
	q := newFakeQueryer()
	c, err := NewConn(context.Background(), q, pinned(13, 2), WithoutStatementCache())
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := c.Exec(context.Background(), "SELECT 1")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, q.prepares)
	// uncached statements go through the unnamed statement
	assert.Equal(t, "SELECT 1", q.names[""])
}

func TestConnVersionDetection(t *testing.T) {
	t.Run("from parameter status", func(t *testing.T) {
		q := newFakeQueryer()
		q.status["server_version"] = "13.2"
		c, err := NewConn(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, ServerVersion{13, 2}, c.Version())
		assert.Zero(t, q.prepares)
	})
	t.Run("from show query", func(t *testing.T) {
		q := newFakeQueryer()
		const query = "SHOW server_version"
		q.fields[query] = []pgconn.FieldDescription{{Name: "server_version", DataTypeOID: pgtype.TextOID}}
		q.results[query] = &fakeStream{rows: [][][]byte{{[]byte("12.4 (Debian 12.4-1.pgdg100+1)")}}}
		c, err := NewConn(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, ServerVersion{12, 4}, c.Version())
		assert.True(t, c.Capabilities().NativeUpsert)
	})
	t.Run("assumed floor", func(t *testing.T) {
		q := newFakeQueryer()
		c, err := NewConn(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, ServerVersion{9, 4}, c.Version())
		assert.False(t, c.Capabilities().NativeUpsert)
		assert.False(t, c.Capabilities().BulkConflictInsert)
	})
	t.Run("pinned wins", func(t *testing.T) {
		q := newFakeQueryer()
		q.status["server_version"] = "13.2"
		c, err := NewConn(context.Background(), q, pinned(9, 4))
		require.NoError(t, err)
		assert.Equal(t, ServerVersion{9, 4}, c.Version())
	})
}

func TestConnClose(t *testing.T) {
	q := newFakeQueryer()
	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)
	require.NoError(t, c.Close(context.Background()))
	assert.True(t, q.closed)
}

func TestTx(t *testing.T) {
	q := newFakeQueryer()
	c, err := NewConn(context.Background(), q, pinned(13, 2))
	require.NoError(t, err)

	tx, err := c.Begin(context.Background(), TxOptions{Isolation: LevelSerializable, ReadOnly: true})
	require.NoError(t, err)
	_, err = tx.Exec(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
	assert.Equal(t, []string{
		"BEGIN ISOLATION LEVEL SERIALIZABLE READ ONLY",
		"SELECT 1",
		"COMMIT",
	}, q.execLog)

	assert.ErrorIs(t, tx.Commit(context.Background()), ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(context.Background()), ErrTxDone)
	_, err = tx.Exec(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestIsolationTranslation(t *testing.T) {
	tests := []struct {
		level IsolationLevel
		want  string
	}{
		{LevelDefault, "BEGIN"},
		{LevelReadUncommitted, "BEGIN ISOLATION LEVEL READ COMMITTED"},
		{LevelReadCommitted, "BEGIN ISOLATION LEVEL READ COMMITTED"},
		{LevelRepeatableRead, "BEGIN ISOLATION LEVEL REPEATABLE READ"},
		{LevelSerializable, "BEGIN ISOLATION LEVEL SERIALIZABLE"},
	}
	for _, tt := range tests {
		q := newFakeQueryer()
		c, err := NewConn(context.Background(), q, pinned(13, 2))
		require.NoError(t, err)
		tx, err := c.Begin(context.Background(), TxOptions{Isolation: tt.level})
		require.NoError(t, err)
		require.NoError(t, tx.Rollback(context.Background()))
		require.NotEmpty(t, q.execLog)
		assert.Equal(t, tt.want, q.execLog[0])
	}
}
