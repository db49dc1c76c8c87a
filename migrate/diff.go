package migrate

import (
	"slices"
	"sort"
	"strings"

	"github.com/syssam/velopg/schema"
)

// ManualPrefix marks unique constraints maintained by hand. Live
// constraints whose names carry the prefix are never dropped by
// reconciliation.
const ManualPrefix = "manual_"

// Op is a single schema alteration. The set is closed: the renderer
// switches exhaustively over it and the planner classifies safety by
// variant.
type Op interface {
	op()
}

// CreateTable creates a table that does not exist yet. Unique constraints
// and foreign keys are carried by separate AddUnique and AddReference
// operations.
type CreateTable struct {
	Table *schema.Table
}

// AddColumn adds a missing column, default and generation expression
// included. Its foreign key, if any, arrives as a separate AddReference.
type AddColumn struct {
	Table  string
	Column schema.Column
}

// DropColumn removes a live column. Safe is set when the desired model
// marked the column as retired; an unmarked drop is destructive and only
// runs when unsafe execution is enabled.
type DropColumn struct {
	Table  string
	Column string
	Safe   bool
}

// SetType changes a column's type. Using carries a conversion expression
// when the cast needs one.
type SetType struct {
	Table  string
	Column string
	Type   schema.ColumnType
	Using  string
}

// SetNotNull tightens a column to reject nulls.
type SetNotNull struct {
	Table  string
	Column string
}

// DropNotNull loosens a column to accept nulls.
type DropNotNull struct {
	Table  string
	Column string
}

// SetDefault installs a default expression on a column.
type SetDefault struct {
	Table   string
	Column  string
	Default string
}

// DropDefault removes a column's default expression.
type DropDefault struct {
	Table  string
	Column string
}

// Backfill fills existing nulls with an expression, ahead of a not-null
// tightening.
type Backfill struct {
	Table  string
	Column string
	Expr   string
}

// AddReference adds a single-column foreign key constraint.
type AddReference struct {
	Table  string
	Column string
	Ref    schema.Reference
}

// DropReference drops a foreign key constraint by name.
type DropReference struct {
	Table string
	Name  string
}

// AddUnique adds a named unique constraint.
type AddUnique struct {
	Table  string
	Unique schema.Unique
}

// DropConstraint drops a named constraint.
type DropConstraint struct {
	Table string
	Name  string
}

func (CreateTable) op()    {}
func (AddColumn) op()      {}
func (DropColumn) op()     {}
func (SetType) op()        {}
func (SetNotNull) op()     {}
func (DropNotNull) op()    {}
func (SetDefault) op()     {}
func (DropDefault) op()    {}
func (Backfill) op()       {}
func (AddReference) op()   {}
func (DropReference) op()  {}
func (AddUnique) op()      {}
func (DropConstraint) op() {}

// Diff computes the operations that turn the live table into the desired
// one, with the default manually-managed prefix. A nil live table means it
// does not exist.
func Diff(desired, live *schema.Table) []Op {
	return diffTable(desired, live, ManualPrefix)
}

// diffTable is deterministic: desired declaration order drives column
// operations, live leftovers follow sorted by name, and constraint
// operations come after all column operations.
func diffTable(desired, live *schema.Table, manualPrefix string) []Op {
	if live == nil {
		return createOps(desired)
	}

	var columnOps, constraintOps []Op
	for _, d := range desired.Columns {
		l, ok := live.Column(d.Name)
		if d.SafeToRemove {
			if ok {
				columnOps = append(columnOps, DropColumn{Table: desired.Name, Column: d.Name, Safe: true})
			}
			continue
		}
		if !ok {
			columnOps = append(columnOps, AddColumn{Table: desired.Name, Column: d})
			if d.Reference != nil && !skipReference(desired, d) {
				constraintOps = append(constraintOps, AddReference{Table: desired.Name, Column: d.Name, Ref: *d.Reference})
			}
			continue
		}
		cOps, tOps := columnAlters(desired, d, l)
		columnOps = append(columnOps, cOps...)
		constraintOps = append(constraintOps, tOps...)
	}

	// Live columns absent from the desired model. Nothing marked them as
	// retired, so the drops are destructive.
	var leftovers []string
	for _, l := range live.Columns {
		if _, ok := desired.Column(l.Name); !ok {
			leftovers = append(leftovers, l.Name)
		}
	}
	sort.Strings(leftovers)
	for _, name := range leftovers {
		columnOps = append(columnOps, DropColumn{Table: desired.Name, Column: name})
	}

	ops := columnOps
	ops = append(ops, uniqueAlters(desired, live, manualPrefix)...)
	ops = append(ops, constraintOps...)
	return ops
}

// createOps renders a missing table: the create itself, then one operation
// per unique constraint and foreign key.
func createOps(t *schema.Table) []Op {
	ops := []Op{CreateTable{Table: t}}
	for _, u := range t.Uniques {
		ops = append(ops, AddUnique{Table: t.Name, Unique: u})
	}
	for _, c := range t.Columns {
		if c.Reference == nil || c.SafeToRemove || skipReference(t, c) {
			continue
		}
		ops = append(ops, AddReference{Table: t.Name, Column: c.Name, Ref: *c.Reference})
	}
	return ops
}

// skipReference reports whether a foreign key add is suppressed: self
// references and references on the primary key column are never added.
func skipReference(t *schema.Table, c schema.Column) bool {
	return c.Reference.Table == t.Name || c.Name == t.Key
}

// columnAlters compares one column present on both sides. Column-level
// operations keep a fixed order: reference drops, then the type change,
// then default and nullability adjustments. Reference adds are
// constraint-level and run after all column operations.
func columnAlters(t *schema.Table, d schema.Column, l *schema.Column) (columnOps, constraintOps []Op) {
	// Foreign key identity is the constraint name; a change drops the old
	// constraint and adds the new one.
	switch {
	case l.Reference != nil && d.Reference == nil:
		columnOps = append(columnOps, DropReference{Table: t.Name, Name: l.Reference.Name})
	case d.Reference != nil && (l.Reference == nil || l.Reference.Name != d.Reference.Name):
		if l.Reference != nil {
			columnOps = append(columnOps, DropReference{Table: t.Name, Name: l.Reference.Name})
		}
		if !skipReference(t, d) {
			constraintOps = append(constraintOps, AddReference{Table: t.Name, Column: d.Name, Ref: *d.Reference})
		}
	}

	// Types compare by rendered SQL, case-insensitively. Moving a naive
	// timestamp to a zone-aware one reinterprets stored values as UTC.
	if !strings.EqualFold(d.Type.SQL(), l.Type.SQL()) {
		op := SetType{Table: t.Name, Column: d.Name, Type: d.Type}
		if isTimestamp(l.Type) && isTimestamptz(d.Type) {
			op.Using = quoteIdent(d.Name) + " AT TIME ZONE 'UTC'"
		}
		columnOps = append(columnOps, op)
	}

	// Sequence-backed defaults belong to the server; leave them alone.
	switch {
	case sequenceDefault(l.Default):
	case d.Default != "" && d.Default != l.Default:
		columnOps = append(columnOps, SetDefault{Table: t.Name, Column: d.Name, Default: d.Default})
	case d.Default == "" && l.Default != "":
		columnOps = append(columnOps, DropDefault{Table: t.Name, Column: d.Name})
	}

	// Nullability never changes on the key column.
	if d.Name != t.Key {
		switch {
		case l.Nullable && !d.Nullable:
			if d.Default != "" {
				columnOps = append(columnOps, Backfill{Table: t.Name, Column: d.Name, Expr: d.Default})
			}
			columnOps = append(columnOps, SetNotNull{Table: t.Name, Column: d.Name})
		case !l.Nullable && d.Nullable:
			columnOps = append(columnOps, DropNotNull{Table: t.Name, Column: d.Name})
		}
	}
	return columnOps, constraintOps
}

// uniqueAlters diffs unique constraints by name. A matched name with a
// different column list is dropped and re-added; drops order before adds
// so a rebuilt constraint can reuse its name.
func uniqueAlters(desired, live *schema.Table, manualPrefix string) []Op {
	desiredByName := make(map[string]schema.Unique, len(desired.Uniques))
	for _, u := range desired.Uniques {
		desiredByName[u.Name] = u
	}
	liveByName := make(map[string]schema.Unique, len(live.Uniques))
	for _, u := range live.Uniques {
		liveByName[u.Name] = u
	}

	var drops, adds []Op
	for _, l := range live.Uniques {
		d, ok := desiredByName[l.Name]
		if !ok {
			if !strings.HasPrefix(l.Name, manualPrefix) {
				drops = append(drops, DropConstraint{Table: desired.Name, Name: l.Name})
			}
			continue
		}
		if !slices.Equal(d.Columns, l.Columns) {
			drops = append(drops, DropConstraint{Table: desired.Name, Name: l.Name})
			adds = append(adds, AddUnique{Table: desired.Name, Unique: d})
		}
	}
	for _, d := range desired.Uniques {
		if _, ok := liveByName[d.Name]; !ok {
			adds = append(adds, AddUnique{Table: desired.Name, Unique: d})
		}
	}
	return append(drops, adds...)
}

// sequenceDefault reports whether a live default is the auto-increment
// sequence expression.
func sequenceDefault(def string) bool {
	return strings.HasPrefix(def, "nextval(")
}

func isTimestamp(t schema.ColumnType) bool {
	_, ok := t.(schema.Timestamp)
	return ok
}

func isTimestamptz(t schema.ColumnType) bool {
	_, ok := t.(schema.Timestamptz)
	return ok
}
