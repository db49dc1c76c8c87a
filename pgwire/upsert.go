package pgwire

import (
	"fmt"
	"strings"
)

// CapabilityError reports a feature the connected server version does not
// provide. Gated features fail loudly rather than being emulated.
type CapabilityError struct {
	Capability string
	Version    ServerVersion
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("pgwire: %s requires PostgreSQL %s or later, server is %s",
		e.Capability, upsertVersion, e.Version)
}

// UpsertSQL builds a single-row INSERT ... ON CONFLICT statement.
// conflictCols name the unique or primary key columns the conflict targets;
// updateCols are assigned from the excluded row. With no updateCols the
// conflicting insert is ignored.
func (c *Conn) UpsertSQL(table string, insertCols, conflictCols, updateCols []string) (string, error) {
	if !c.caps.NativeUpsert {
		return "", &CapabilityError{Capability: "native upsert", Version: c.version}
	}
	return conflictInsertSQL(table, insertCols, conflictCols, updateCols, 1)
}

// BulkUpsertSQL builds the multi-row VALUES form of the conflict insert.
// Parameters number row-major, so row i column j binds $(i*cols+j+1).
func (c *Conn) BulkUpsertSQL(table string, insertCols, conflictCols, updateCols []string, rows int) (string, error) {
	if !c.caps.BulkConflictInsert {
		return "", &CapabilityError{Capability: "bulk conflict insert", Version: c.version}
	}
	return conflictInsertSQL(table, insertCols, conflictCols, updateCols, rows)
}

func conflictInsertSQL(table string, insertCols, conflictCols, updateCols []string, rows int) (string, error) {
	if rows < 1 {
		return "", fmt.Errorf("pgwire: conflict insert needs at least one row")
	}
	if len(insertCols) == 0 {
		return "", fmt.Errorf("pgwire: conflict insert needs at least one column")
	}
	if len(conflictCols) == 0 && len(updateCols) > 0 {
		return "", fmt.Errorf("pgwire: conflict update needs target columns")
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(quoteIdent(table))
	sb.WriteString(" (")
	for i, col := range insertCols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(col))
	}
	sb.WriteString(") VALUES ")
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := 0; j < len(insertCols); j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", n)
			n++
		}
		sb.WriteByte(')')
	}
	sb.WriteString(" ON CONFLICT")
	if len(conflictCols) > 0 {
		sb.WriteString(" (")
		for i, col := range conflictCols {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteIdent(col))
		}
		sb.WriteByte(')')
	}
	if len(updateCols) == 0 {
		sb.WriteString(" DO NOTHING")
		return sb.String(), nil
	}
	sb.WriteString(" DO UPDATE SET ")
	for i, col := range updateCols {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = EXCLUDED.%s", quoteIdent(col), quoteIdent(col))
	}
	return sb.String(), nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
