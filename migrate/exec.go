package migrate

import (
	"context"
	"errors"

	"github.com/syssam/velopg/pgval"
	"github.com/syssam/velopg/pgwire"
)

// ExecQuerier is the statement surface the reconciler runs on. Exec runs a
// statement for its side effect; Query runs one and materializes every row.
// Both execute on a single connection, so callers layer transactions
// themselves when they need the plan applied atomically.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args ...pgval.Value) error
	Query(ctx context.Context, query string, args ...pgval.Value) ([][]pgval.Value, error)
}

// Wire adapts a pgwire connection to the reconciler's statement surface.
func Wire(conn *pgwire.Conn) ExecQuerier {
	return wireExec{conn: conn}
}

type wireExec struct {
	conn *pgwire.Conn
}

func (w wireExec) Exec(ctx context.Context, query string, args ...pgval.Value) error {
	_, err := w.conn.Exec(ctx, query, args...)
	return err
}

// Close releases the wrapped connection.
func (w wireExec) Close(ctx context.Context) error {
	return w.conn.Close(ctx)
}

func (w wireExec) Query(ctx context.Context, query string, args ...pgval.Value) ([][]pgval.Value, error) {
	rows, err := w.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out [][]pgval.Value
	for rows.Next() {
		row := make([]pgval.Value, len(rows.Values()))
		copy(row, rows.Values())
		out = append(out, row)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// detectServerVersion resolves the version the reconciler should gate on.
// The pgwire adapter already detected it during the handshake; any other
// ExecQuerier is asked directly.
func detectServerVersion(ctx context.Context, exec ExecQuerier) (pgwire.ServerVersion, error) {
	if w, ok := exec.(wireExec); ok {
		return w.conn.Version(), nil
	}
	rows, err := exec.Query(ctx, "SHOW server_version")
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return nil, errors.New("migrate: SHOW server_version returned no rows")
	}
	raw, ok := rows[0][0].(pgval.Text)
	if !ok {
		return nil, errors.New("migrate: SHOW server_version returned a non-text value")
	}
	return pgwire.ParseServerVersion(string(raw))
}
