package schema

// Entity describes one persisted entity before compilation. It is a plain
// descriptor; Compile turns it into the Table shape the differ consumes.
type Entity struct {
	// Name is the entity name, e.g. "BlogPost". The storage name derives
	// from it unless Table overrides it.
	Name string
	// Table is an explicit storage name override.
	Table string
	// Key is the primary key field. Nil selects the default, a bigint
	// column named "id".
	Key *Field
	// Fields are the non-key fields in declaration order.
	Fields []Field
	// Uniques are multi-column unique constraints. Single-column uniques
	// are more conveniently declared on the field.
	Uniques []Unique
}

// Field describes one entity field.
type Field struct {
	Name string
	Type ColumnType
	// Optional marks the column nullable.
	Optional bool
	// Default is a SQL default expression.
	Default string
	// Unique adds a single-column unique constraint with a derived name.
	Unique bool
	// SafeToRemove marks a column the model intends to retire. The differ
	// emits a safe drop for it; unmarked columns are never dropped safely.
	SafeToRemove bool
	// References makes the field a foreign key to another table's primary
	// key. The constraint name is derived when empty.
	References *Reference
	// Generated is a generation expression for a computed column.
	Generated string
}
