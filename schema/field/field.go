// Package field provides chainable builders for entity fields. Builders are
// sugar over [schema.Field]; each constructor picks the column type and the
// chain fills in the remaining descriptor knobs:
//
//	field.Text("email").Unique().Descriptor()
//	field.Int8("group_id").References("groups").OnDelete(schema.Cascade).Descriptor()
package field

import "github.com/syssam/velopg/schema"

// A Builder accumulates one field descriptor. The zero value is not usable;
// obtain builders from the typed constructors.
type Builder struct {
	desc schema.Field
}

// Bool returns a BOOLEAN field builder.
func Bool(name string) *Builder {
	return typed(name, schema.Bool{})
}

// Int2 returns a smallint field builder.
func Int2(name string) *Builder {
	return typed(name, schema.Int2{})
}

// Int4 returns an integer field builder.
func Int4(name string) *Builder {
	return typed(name, schema.Int4{})
}

// Int8 returns a bigint field builder.
func Int8(name string) *Builder {
	return typed(name, schema.Int8{})
}

// Float8 returns a double precision field builder.
func Float8(name string) *Builder {
	return typed(name, schema.Float8{})
}

// Numeric returns an arbitrary-precision field builder. Precision and scale
// are required because the catalog reports them and the differ compares them.
func Numeric(name string, precision, scale int) *Builder {
	return typed(name, schema.Numeric{Precision: precision, Scale: scale})
}

// Text returns an unbounded text field builder.
func Text(name string) *Builder {
	return typed(name, schema.Text{})
}

// Varchar returns a varchar(limit) field builder. A zero limit renders an
// unbounded varchar.
func Varchar(name string, limit int) *Builder {
	return typed(name, schema.Varchar{Size: limit})
}

// Bytes returns a bytea field builder.
func Bytes(name string) *Builder {
	return typed(name, schema.Bytea{})
}

// Date returns a date field builder.
func Date(name string) *Builder {
	return typed(name, schema.Date{})
}

// TimeOfDay returns a time-of-day field builder.
func TimeOfDay(name string) *Builder {
	return typed(name, schema.TimeOfDay{})
}

// Timestamp returns a timestamp-without-zone field builder. Prefer
// [Timestamptz] for new columns; the differ migrates timestamp columns to
// timestamptz assuming UTC.
func Timestamp(name string) *Builder {
	return typed(name, schema.Timestamp{})
}

// Timestamptz returns a timestamp-with-zone field builder.
func Timestamptz(name string) *Builder {
	return typed(name, schema.Timestamptz{})
}

// Interval returns an interval field builder.
func Interval(name string) *Builder {
	return typed(name, schema.Interval{})
}

// Other returns a builder for a column type outside the built-in set. The
// type text is rendered and compared verbatim.
func Other(name, typeText string) *Builder {
	return typed(name, schema.Other{Name: typeText})
}

func typed(name string, t schema.ColumnType) *Builder {
	return &Builder{desc: schema.Field{Name: name, Type: t}}
}

// Optional marks the column nullable.
func (b *Builder) Optional() *Builder {
	b.desc.Optional = true
	return b
}

// Unique adds a single-column unique constraint with a derived name.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Default sets a SQL default expression, quoted exactly as given.
func (b *Builder) Default(expr string) *Builder {
	b.desc.Default = expr
	return b
}

// SafeToRemove marks a column the model intends to retire.
func (b *Builder) SafeToRemove() *Builder {
	b.desc.SafeToRemove = true
	return b
}

// GeneratedAs makes the column a stored generated column.
func (b *Builder) GeneratedAs(expr string) *Builder {
	b.desc.Generated = expr
	return b
}

// References makes the field a foreign key to table's primary key. The
// constraint name is derived unless [Builder.ConstraintName] overrides it.
func (b *Builder) References(table string) *Builder {
	b.ref().Table = table
	return b
}

// ConstraintName overrides the derived foreign-key constraint name.
func (b *Builder) ConstraintName(name string) *Builder {
	b.ref().Name = name
	return b
}

// OnDelete sets the referential delete action.
func (b *Builder) OnDelete(action schema.ReferenceAction) *Builder {
	b.ref().OnDelete = action
	return b
}

// OnUpdate sets the referential update action.
func (b *Builder) OnUpdate(action schema.ReferenceAction) *Builder {
	b.ref().OnUpdate = action
	return b
}

func (b *Builder) ref() *schema.Reference {
	if b.desc.References == nil {
		b.desc.References = &schema.Reference{}
	}
	return b.desc.References
}

// Descriptor returns the built field.
func (b *Builder) Descriptor() schema.Field {
	return b.desc
}

// Descriptors collapses a builder chain list into field descriptors, in
// declaration order.
func Descriptors(builders ...*Builder) []schema.Field {
	fields := make([]schema.Field, len(builders))
	for i, b := range builders {
		fields[i] = b.Descriptor()
	}
	return fields
}
