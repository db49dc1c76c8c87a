package pgwire

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/syssam/velopg/pgval"
)

// Queryer is the statement-execution primitive a Conn drives. The production
// implementation wraps *pgconn.PgConn; tests substitute fakes.
type Queryer interface {
	// Prepare registers a statement under name and describes its parameter
	// and result shape. The unnamed statement is the empty name.
	Prepare(ctx context.Context, name, query string) (*pgconn.StatementDescription, error)
	// Execute runs a prepared statement with text-format parameters and
	// returns its single result stream.
	Execute(ctx context.Context, name string, params [][]byte) ResultStream
	// ParameterStatus reports a server-announced runtime parameter, or "".
	ParameterStatus(key string) string
	// Close terminates the session.
	Close(ctx context.Context) error
}

// ResultStream is a single-pass cursor over one statement's result, in the
// shape *pgconn.ResultReader provides. Values are borrowed until the next
// NextRow and Close drains whatever was not read.
type ResultStream interface {
	FieldDescriptions() []pgconn.FieldDescription
	NextRow() bool
	Values() [][]byte
	Close() (pgconn.CommandTag, error)
}

type pgQueryer struct {
	conn *pgconn.PgConn
}

func (p pgQueryer) Prepare(ctx context.Context, name, query string) (*pgconn.StatementDescription, error) {
	return p.conn.Prepare(ctx, name, query, nil)
}

func (p pgQueryer) Execute(ctx context.Context, name string, params [][]byte) ResultStream {
	return p.conn.ExecPrepared(ctx, name, params, nil, nil)
}

func (p pgQueryer) ParameterStatus(key string) string { return p.conn.ParameterStatus(key) }

func (p pgQueryer) Close(ctx context.Context) error { return p.conn.Close(ctx) }

// Conn executes statements over one backend session. A Conn is not safe for
// concurrent use and runs at most one statement at a time; open one Conn per
// concurrently active session, typically from an externally owned pool.
type Conn struct {
	q       Queryer
	codec   *Codec
	version ServerVersion
	caps    Capabilities
	cache   bool
	nstmt   int
	stmts   map[string]*pgconn.StatementDescription
}

// Option configures a Conn at open time.
type Option func(*Conn)

// WithServerVersion pins the server version instead of detecting it, for
// servers whose version text is absent or known to lie.
func WithServerVersion(v ServerVersion) Option {
	return func(c *Conn) { c.version = v }
}

// WithCodec substitutes the value codec, usually one extended with Register.
func WithCodec(codec *Codec) Option {
	return func(c *Conn) { c.codec = codec }
}

// WithoutStatementCache runs every statement through the unnamed prepared
// statement instead of caching by query text.
func WithoutStatementCache() Option {
	return func(c *Conn) { c.cache = false }
}

// Connect dials the server and wraps the session.
func Connect(ctx context.Context, connString string, opts ...Option) (*Conn, error) {
	conn, err := pgconn.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("pgwire: connect: %w", err)
	}
	return NewConn(ctx, pgQueryer{conn}, opts...)
}

// NewConn wraps an open session. The statement cache is created here, owned
// by this Conn alone and dropped at Close. The server version is detected
// unless pinned; when it cannot be determined the conservative floor is
// assumed rather than failing.
func NewConn(ctx context.Context, q Queryer, opts ...Option) (*Conn, error) {
	c := &Conn{
		q:     q,
		codec: NewCodec(),
		cache: true,
		stmts: make(map[string]*pgconn.StatementDescription),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.version == nil {
		c.version = c.detectVersion(ctx)
	}
	c.caps = CapabilitiesFor(c.version)
	return c, nil
}

func (c *Conn) detectVersion(ctx context.Context) ServerVersion {
	raw := c.q.ParameterStatus("server_version")
	if raw == "" {
		rows, err := c.Query(ctx, "SHOW server_version")
		if err != nil {
			return assumedVersion
		}
		if rows.Next() {
			if t, ok := rows.Values()[0].(pgval.Text); ok {
				raw = string(t)
			}
		}
		rows.Close()
	}
	v, err := ParseServerVersion(raw)
	if err != nil {
		return assumedVersion
	}
	return v
}

// Version reports the detected or pinned server version.
func (c *Conn) Version() ServerVersion { return c.version }

// Capabilities reports the version-gated feature set of this session.
func (c *Conn) Capabilities() Capabilities { return c.caps }

// Query runs a row-returning statement. The statement executes even when it
// turns out not to return rows; that case surfaces as a ResultError carrying
// the server's status so misuse is loud.
func (c *Conn) Query(ctx context.Context, query string, args ...pgval.Value) (*Rows, error) {
	sd, err := c.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	params, err := c.codec.EncodeParams(args)
	if err != nil {
		return nil, err
	}
	rs := c.q.Execute(ctx, sd.Name, params)
	if len(sd.Fields) == 0 {
		tag, err := rs.Close()
		if err != nil {
			return nil, fmt.Errorf("pgwire: execute %q: %w", query, err)
		}
		return nil, &ResultError{Query: query, Tag: tag.String()}
	}
	return &Rows{rs: rs, fields: sd.Fields, codec: c.codec}, nil
}

// Exec runs a statement and drains its result.
func (c *Conn) Exec(ctx context.Context, query string, args ...pgval.Value) (pgconn.CommandTag, error) {
	sd, err := c.prepare(ctx, query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	params, err := c.codec.EncodeParams(args)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	rs := c.q.Execute(ctx, sd.Name, params)
	tag, err := rs.Close()
	if err != nil {
		return tag, fmt.Errorf("pgwire: execute %q: %w", query, err)
	}
	return tag, nil
}

func (c *Conn) prepare(ctx context.Context, query string) (*pgconn.StatementDescription, error) {
	if c.cache {
		if sd, ok := c.stmts[query]; ok {
			return sd, nil
		}
	}
	var name string
	if c.cache {
		c.nstmt++
		name = fmt.Sprintf("velopg_%d", c.nstmt)
	}
	sd, err := c.q.Prepare(ctx, name, query)
	if err != nil {
		return nil, fmt.Errorf("pgwire: prepare %q: %w", query, err)
	}
	if c.cache {
		c.stmts[query] = sd
	}
	return sd, nil
}

// Close drops the statement cache and closes the session.
func (c *Conn) Close(ctx context.Context) error {
	clear(c.stmts)
	if err := c.q.Close(ctx); err != nil {
		return fmt.Errorf("pgwire: close: %w", err)
	}
	return nil
}

// ResultError reports a statement that ran but produced no row data where
// rows were required.
type ResultError struct {
	Query string
	Tag   string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("pgwire: query %q returned status %q instead of rows", e.Query, e.Tag)
}

// Rows is a pull cursor over one result. The stream belongs to the Conn, so
// at most one Rows may be open per Conn. The cursor is released exactly once
// regardless of path: end of data, decode failure and Close all back into
// the same release, and Close may be called repeatedly.
type Rows struct {
	rs     ResultStream
	fields []pgconn.FieldDescription
	codec  *Codec
	row    []pgval.Value
	count  int
	tag    pgconn.CommandTag
	err    error
	closed bool
}

// Fields returns the column descriptors captured when the statement was
// described, before any row was pulled.
func (r *Rows) Fields() []pgconn.FieldDescription { return r.fields }

// Next pulls and decodes the next row. It reports false at the end of data
// or on the first error; either way the cursor is already released.
func (r *Rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	if !r.rs.NextRow() {
		r.release()
		return false
	}
	raw := r.rs.Values()
	if r.row == nil {
		r.row = make([]pgval.Value, len(r.fields))
	}
	for i := range r.fields {
		var src []byte
		if i < len(raw) {
			src = raw[i]
		}
		v, err := r.codec.Decode(r.fields[i].DataTypeOID, src)
		if err != nil {
			r.err = fmt.Errorf("pgwire: column %q: %w", r.fields[i].Name, err)
			r.release()
			return false
		}
		r.row[i] = v
	}
	r.count++
	return true
}

// Values returns the current row. The slice is reused between pulls.
func (r *Rows) Values() []pgval.Value { return r.row }

// Count reports how many rows have been decoded so far.
func (r *Rows) Count() int { return r.count }

// Err returns the first error the cursor hit, if any.
func (r *Rows) Err() error { return r.err }

// CommandTag reports the statement's completion tag once the cursor has been
// released.
func (r *Rows) CommandTag() pgconn.CommandTag { return r.tag }

// Close releases the cursor and reports the first error seen on this result.
func (r *Rows) Close() error {
	r.release()
	return r.err
}

func (r *Rows) release() {
	if r.closed {
		return
	}
	r.closed = true
	tag, err := r.rs.Close()
	r.tag = tag
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("pgwire: %w", err)
	}
}

// ErrTxDone is returned by transaction calls after Commit or Rollback.
var ErrTxDone = errors.New("pgwire: transaction already finished")

// IsolationLevel selects the isolation to request at Begin. The zero value
// keeps the server default.
type IsolationLevel int

const (
	LevelDefault IsolationLevel = iota
	LevelReadUncommitted
	LevelReadCommitted
	LevelRepeatableRead
	LevelSerializable
)

// beginSQL translates the requested level to the nearest one the server
// supports. READ UNCOMMITTED runs as READ COMMITTED, which is stronger.
func (l IsolationLevel) beginSQL() string {
	switch l {
	case LevelReadUncommitted, LevelReadCommitted:
		return "BEGIN ISOLATION LEVEL READ COMMITTED"
	case LevelRepeatableRead:
		return "BEGIN ISOLATION LEVEL REPEATABLE READ"
	case LevelSerializable:
		return "BEGIN ISOLATION LEVEL SERIALIZABLE"
	}
	return "BEGIN"
}

// TxOptions configures Begin.
type TxOptions struct {
	Isolation IsolationLevel
	ReadOnly  bool
}

// Tx is a transaction layered on the Conn as explicit statements. There is
// no nesting and no savepoint management.
type Tx struct {
	conn *Conn
	done bool
}

// Begin opens a transaction on the connection.
func (c *Conn) Begin(ctx context.Context, opts TxOptions) (*Tx, error) {
	stmt := opts.Isolation.beginSQL()
	if opts.ReadOnly {
		stmt += " READ ONLY"
	}
	if _, err := c.Exec(ctx, stmt); err != nil {
		return nil, err
	}
	return &Tx{conn: c}, nil
}

// Exec runs a statement inside the transaction.
func (tx *Tx) Exec(ctx context.Context, query string, args ...pgval.Value) (pgconn.CommandTag, error) {
	if tx.done {
		return pgconn.CommandTag{}, ErrTxDone
	}
	return tx.conn.Exec(ctx, query, args...)
}

// Query runs a row-returning statement inside the transaction.
func (tx *Tx) Query(ctx context.Context, query string, args ...pgval.Value) (*Rows, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	return tx.conn.Query(ctx, query, args...)
}

// Commit finishes the transaction.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	_, err := tx.conn.Exec(ctx, "COMMIT")
	return err
}

// Rollback aborts the transaction.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	_, err := tx.conn.Exec(ctx, "ROLLBACK")
	return err
}

var (
	_ Queryer      = pgQueryer{}
	_ ResultStream = (*pgconn.ResultReader)(nil)
)
