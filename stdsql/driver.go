// Package stdsql runs reconciliation statements over database/sql, so an
// application already holding a pool does not need a second wire
// connection. Parameters bind in text form through the value codec and
// rows come back as generic values, the same shapes the wire adapter
// produces.
package stdsql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/syssam/velopg/migrate"
	"github.com/syssam/velopg/pgval"
	"github.com/syssam/velopg/pgwire"
)

// ExecQuerier is the subset of database/sql methods the bridge needs.
// *sql.DB, *sql.Conn and *sql.Tx all satisfy it.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Driver adapts a database/sql handle to the reconciler's statement
// surface.
type Driver struct {
	conn  ExecQuerier
	codec *pgwire.Codec
}

// Open opens a PostgreSQL pool through the registered pq driver and wraps
// it.
func Open(source string) (*Driver, error) {
	db, err := sql.Open("postgres", source)
	if err != nil {
		return nil, err
	}
	return OpenDB(db), nil
}

// OpenDB wraps an existing pool.
func OpenDB(db *sql.DB) *Driver {
	return NewDriver(db)
}

// NewDriver wraps any database/sql execution handle.
func NewDriver(conn ExecQuerier) *Driver {
	return &Driver{conn: conn, codec: pgwire.NewCodec()}
}

// DB returns the underlying pool.
func (d *Driver) DB() *sql.DB {
	return d.conn.(*sql.DB)
}

// Close closes the underlying pool.
func (d *Driver) Close() error {
	return d.DB().Close()
}

// Exec runs a statement for its side effect.
func (d *Driver) Exec(ctx context.Context, query string, args ...pgval.Value) error {
	argv, err := d.bind(args)
	if err != nil {
		return err
	}
	if _, err := d.conn.ExecContext(ctx, query, argv...); err != nil {
		return fmt.Errorf("stdsql: exec: %w", err)
	}
	return nil
}

// Query runs a statement and materializes every row.
func (d *Driver) Query(ctx context.Context, query string, args ...pgval.Value) ([][]pgval.Value, error) {
	argv, err := d.bind(args)
	if err != nil {
		return nil, err
	}
	rows, err := d.conn.QueryContext(ctx, query, argv...)
	if err != nil {
		return nil, fmt.Errorf("stdsql: query: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("stdsql: query: %w", err)
	}
	var out [][]pgval.Value
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("stdsql: scan: %w", err)
		}
		row := make([]pgval.Value, len(cols))
		for i, v := range raw {
			pv, err := scanValue(v)
			if err != nil {
				return nil, fmt.Errorf("stdsql: column %q: %w", cols[i], err)
			}
			row[i] = pv
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stdsql: rows: %w", err)
	}
	return out, nil
}

// bind renders parameters in the text format the server accepts for every
// parameter type.
func (d *Driver) bind(args []pgval.Value) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		b, err := d.codec.Encode(a)
		if err != nil {
			return nil, fmt.Errorf("stdsql: parameter %d: %w", i+1, err)
		}
		if b == nil {
			continue
		}
		out[i] = string(b)
	}
	return out, nil
}

// scanValue maps a database/sql value back into the generic value set.
// Text arrives either as string or raw bytes depending on the driver;
// both land on the textual side so catalog readers see one shape.
func scanValue(v any) (pgval.Value, error) {
	switch v := v.(type) {
	case nil:
		return pgval.Null{}, nil
	case bool:
		return pgval.Bool(v), nil
	case int64:
		return pgval.Int64(v), nil
	case float64:
		return pgval.Float64(v), nil
	case string:
		return pgval.Text(v), nil
	case []byte:
		return pgval.Text(v), nil
	case time.Time:
		return pgval.Timestamptz(v), nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", v)
	}
}

// BeginTx opens a transaction on the pool, so a whole plan can apply
// atomically.
func (d *Driver) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Driver: &Driver{conn: tx, codec: d.codec}, tx: tx}, nil
}

// Tx is a Driver bound to one transaction.
type Tx struct {
	*Driver
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls the transaction back.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

var (
	_ migrate.ExecQuerier = (*Driver)(nil)
	_ migrate.ExecQuerier = (*Tx)(nil)
	_ ExecQuerier         = (*sql.DB)(nil)
	_ ExecQuerier         = (*sql.Tx)(nil)
)
