package migrate

import (
	"fmt"
	"strings"

	"github.com/syssam/velopg/schema"
)

// stmt assembles one DDL statement. Identifiers flow through ident, so
// quoting lives in a single routine.
type stmt struct {
	sb strings.Builder
}

func (s *stmt) raw(parts ...string) *stmt {
	for _, p := range parts {
		s.sb.WriteString(p)
	}
	return s
}

func (s *stmt) ident(name string) *stmt {
	s.sb.WriteString(quoteIdent(name))
	return s
}

func (s *stmt) identList(names []string) *stmt {
	for i, n := range names {
		if i > 0 {
			s.sb.WriteString(",")
		}
		s.ident(n)
	}
	return s
}

func (s *stmt) String() string {
	return s.sb.String()
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Render turns one operation into its SQL statement.
func Render(op Op) string {
	s := &stmt{}
	switch op := op.(type) {
	case CreateTable:
		renderCreate(s, op.Table)
	case AddColumn:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" ADD COLUMN ")
		renderColumn(s, op.Column, false)
	case DropColumn:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" DROP COLUMN ").ident(op.Column)
	case SetType:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" ALTER COLUMN ").ident(op.Column).raw(" TYPE ", op.Type.SQL())
		if op.Using != "" {
			s.raw(" USING ", op.Using)
		}
	case SetNotNull:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" ALTER COLUMN ").ident(op.Column).raw(" SET NOT NULL")
	case DropNotNull:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" ALTER COLUMN ").ident(op.Column).raw(" DROP NOT NULL")
	case SetDefault:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" ALTER COLUMN ").ident(op.Column).raw(" SET DEFAULT ", op.Default)
	case DropDefault:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" ALTER COLUMN ").ident(op.Column).raw(" DROP DEFAULT")
	case Backfill:
		s.raw("UPDATE ").ident(op.Table).raw(" SET ").ident(op.Column).raw(" = ", op.Expr, " WHERE ").ident(op.Column).raw(" IS NULL")
	case AddReference:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" ADD CONSTRAINT ").ident(op.Ref.Name).
			raw(" FOREIGN KEY(").ident(op.Column).raw(") REFERENCES ").ident(op.Ref.Table)
		if a := op.Ref.OnDelete; a != "" && a != schema.NoAction {
			s.raw(" ON DELETE ", string(a))
		}
		if a := op.Ref.OnUpdate; a != "" && a != schema.NoAction {
			s.raw(" ON UPDATE ", string(a))
		}
	case DropReference:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" DROP CONSTRAINT ").ident(op.Name)
	case AddUnique:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" ADD CONSTRAINT ").ident(op.Unique.Name).
			raw(" UNIQUE(").identList(op.Unique.Columns).raw(")")
	case DropConstraint:
		s.raw("ALTER TABLE ").ident(op.Table).raw(" DROP CONSTRAINT ").ident(op.Name)
	default:
		panic(fmt.Sprintf("migrate: unknown operation %T", op))
	}
	return s.String()
}

func renderCreate(s *stmt, t *schema.Table) {
	s.raw("CREATE TABLE ").ident(t.Name).raw(" (")
	first := true
	for _, c := range t.Columns {
		if c.SafeToRemove {
			continue
		}
		if !first {
			s.raw(", ")
		}
		first = false
		renderColumn(s, c, c.Name == t.Key)
	}
	s.raw(")")
}

// renderColumn renders one column clause. An integer key column with no
// explicit default becomes the matching serial type, so the server owns
// its sequence.
func renderColumn(s *stmt, c schema.Column, key bool) {
	s.ident(c.Name).raw(" ")
	if key {
		if st, ok := serialType(c.Type); ok && c.Default == "" {
			s.raw(st, " PRIMARY KEY")
			return
		}
		s.raw(c.Type.SQL())
		if c.Default != "" {
			s.raw(" DEFAULT ", c.Default)
		}
		s.raw(" PRIMARY KEY")
		return
	}
	s.raw(c.Type.SQL())
	if !c.Nullable {
		s.raw(" NOT NULL")
	}
	switch {
	case c.Generated != "":
		s.raw(" GENERATED ALWAYS AS (", c.Generated, ") STORED")
	case c.Default != "":
		s.raw(" DEFAULT ", c.Default)
	}
}

func serialType(t schema.ColumnType) (string, bool) {
	switch t.(type) {
	case schema.Int2:
		return "SERIAL2", true
	case schema.Int4:
		return "SERIAL4", true
	case schema.Int8:
		return "SERIAL8", true
	}
	return "", false
}
