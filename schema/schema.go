// Package schema holds the desired-model vocabulary of the adapter: logical
// column types, table shapes, and the entity descriptors the compiler
// normalizes into them. The same shapes describe live tables read back from
// the catalog, which is what makes desired and observed schemas comparable.
package schema

import "fmt"

// ColumnType is the closed set of SQL types the adapter reasons about.
// Each variant renders its canonical type text; the differ compares that
// text case-insensitively.
type ColumnType interface {
	// SQL returns the canonical type text, e.g. "INT8" or "NUMERIC(10,2)".
	SQL() string
	columnType() // sealed
}

// Bool is BOOLEAN.
type Bool struct{}

func (Bool) SQL() string { return "BOOLEAN" }
func (Bool) columnType() {}

// Int2 is SMALLINT.
type Int2 struct{}

func (Int2) SQL() string { return "INT2" }
func (Int2) columnType() {}

// Int4 is INTEGER.
type Int4 struct{}

func (Int4) SQL() string { return "INT4" }
func (Int4) columnType() {}

// Int8 is BIGINT.
type Int8 struct{}

func (Int8) SQL() string { return "INT8" }
func (Int8) columnType() {}

// Float8 is DOUBLE PRECISION.
type Float8 struct{}

func (Float8) SQL() string { return "DOUBLE PRECISION" }
func (Float8) columnType() {}

// Numeric is NUMERIC with an explicit precision and scale. The adapter never
// works with unconstrained numerics; a precision is required.
type Numeric struct {
	Precision int
	Scale     int
}

func (t Numeric) SQL() string { return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale) }
func (Numeric) columnType()   {}

// Text is TEXT.
type Text struct{}

func (Text) SQL() string { return "TEXT" }
func (Text) columnType() {}

// Varchar is VARCHAR, optionally length-limited. Size zero means no limit.
type Varchar struct {
	Size int
}

func (t Varchar) SQL() string {
	if t.Size > 0 {
		return fmt.Sprintf("VARCHAR(%d)", t.Size)
	}
	return "VARCHAR"
}
func (Varchar) columnType() {}

// Bytea is BYTEA.
type Bytea struct{}

func (Bytea) SQL() string { return "BYTEA" }
func (Bytea) columnType() {}

// Date is DATE.
type Date struct{}

func (Date) SQL() string { return "DATE" }
func (Date) columnType() {}

// TimeOfDay is TIME without a zone.
type TimeOfDay struct{}

func (TimeOfDay) SQL() string { return "TIME" }
func (TimeOfDay) columnType() {}

// Timestamp is TIMESTAMP without a zone.
type Timestamp struct{}

func (Timestamp) SQL() string { return "TIMESTAMP" }
func (Timestamp) columnType() {}

// Timestamptz is TIMESTAMP WITH TIME ZONE.
type Timestamptz struct{}

func (Timestamptz) SQL() string { return "TIMESTAMP WITH TIME ZONE" }
func (Timestamptz) columnType() {}

// Interval is INTERVAL.
type Interval struct{}

func (Interval) SQL() string { return "INTERVAL" }
func (Interval) columnType() {}

// Other is a type outside the closed set, carried verbatim. Introspection
// produces it for server types the adapter does not model, and the desired
// side may use it for extension types.
type Other struct {
	Name string
}

func (t Other) SQL() string { return t.Name }
func (Other) columnType()   {}

// ReferenceAction is a foreign key ON DELETE or ON UPDATE rule, spelled the
// way the catalog reports it. The empty string leaves the clause out, which
// the server treats as NO ACTION.
type ReferenceAction string

const (
	NoAction   ReferenceAction = "NO ACTION"
	Restrict   ReferenceAction = "RESTRICT"
	Cascade    ReferenceAction = "CASCADE"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
)

// Reference is a single-column foreign key targeting another table's
// primary key.
type Reference struct {
	// Name is the constraint name. The compiler fills it with the
	// server-compatible derived name when empty.
	Name     string
	Table    string
	OnDelete ReferenceAction
	OnUpdate ReferenceAction
}

// Column is one column of a desired or observed table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	// Default is the SQL default expression, empty for none.
	Default string
	// Generated is the generation expression for computed columns.
	Generated string
	// SafeToRemove marks a column the desired model intends to retire, so
	// dropping it is a safe operation.
	SafeToRemove bool
	Reference    *Reference
}

// Unique is a named unique constraint over ordered columns.
type Unique struct {
	Name    string
	Columns []string
}

// Table is a compiled or introspected table shape.
type Table struct {
	Name string
	// Key names the primary key column. Introspected tables leave it empty.
	Key     string
	Columns []Column
	Uniques []Unique
}

// Column returns the named column, if present.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}
