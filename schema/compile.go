package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"
)

// maxIdentLen is the server's identifier limit in bytes (NAMEDATALEN-1).
const maxIdentLen = 63

// TableName derives the storage name for an entity name: lower snake case,
// pluralized.
func TableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// RefName builds the foreign key constraint name for a column, reproducing
// the server's own choice of table_column_fkey. When the name exceeds the
// identifier limit the longer of the two parts shrinks one byte at a time
// until it fits, exactly as the server truncates, so names derived here
// always match names read back from the catalog. A fitting name is returned
// unchanged, which makes the truncation idempotent.
func RefName(table, column string) string {
	return truncatePair(table, column, "_fkey")
}

func truncatePair(table, column, suffix string) string {
	for len(table)+len(column)+1+len(suffix) > maxIdentLen {
		if len(table) > len(column) {
			table = table[:len(table)-1]
		} else {
			column = column[:len(column)-1]
		}
	}
	return table + "_" + column + suffix
}

// UniqueName derives the constraint name for a unique over the given
// columns, clipped to the identifier limit.
func UniqueName(table string, columns ...string) string {
	name := table
	for _, col := range columns {
		name += "_" + col
	}
	name += "_key"
	if len(name) > maxIdentLen {
		name = name[:maxIdentLen]
	}
	return name
}

// Compile normalizes an entity into its table shape: the key column first,
// fields in declaration order, derived constraint names filled in, and the
// structure validated.
func Compile(e *Entity) (*Table, error) {
	name := e.Table
	if name == "" {
		if e.Name == "" {
			return nil, fmt.Errorf("schema: entity needs a name or a table")
		}
		name = TableName(e.Name)
	}
	key := e.Key
	if key == nil {
		key = &Field{Name: "id", Type: Int8{}}
	}
	if key.Name == "" {
		return nil, fmt.Errorf("schema: table %q: key field needs a name", name)
	}
	if key.Optional {
		return nil, fmt.Errorf("schema: table %q: key column cannot be optional", name)
	}

	t := &Table{Name: name, Key: key.Name}
	seen := map[string]bool{}
	add := func(f *Field) error {
		if f.Name == "" {
			return fmt.Errorf("schema: table %q: field needs a name", name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema: table %q: duplicate column %q", name, f.Name)
		}
		seen[f.Name] = true
		if err := validateType(name, f); err != nil {
			return err
		}
		col := Column{
			Name:         f.Name,
			Type:         f.Type,
			Nullable:     f.Optional,
			Default:      f.Default,
			Generated:    f.Generated,
			SafeToRemove: f.SafeToRemove,
		}
		if f.References != nil {
			ref := *f.References
			if ref.Table == "" {
				return fmt.Errorf("schema: table %q: column %q references no table", name, f.Name)
			}
			if ref.Name == "" {
				ref.Name = RefName(name, f.Name)
			}
			col.Reference = &ref
		}
		t.Columns = append(t.Columns, col)
		if f.Unique {
			t.Uniques = append(t.Uniques, Unique{Name: UniqueName(name, f.Name), Columns: []string{f.Name}})
		}
		return nil
	}
	if err := add(key); err != nil {
		return nil, err
	}
	for i := range e.Fields {
		if err := add(&e.Fields[i]); err != nil {
			return nil, err
		}
	}
	for _, u := range e.Uniques {
		if len(u.Columns) == 0 {
			return nil, fmt.Errorf("schema: table %q: unique %q has no columns", name, u.Name)
		}
		for _, col := range u.Columns {
			if !seen[col] {
				return nil, fmt.Errorf("schema: table %q: unique %q names unknown column %q", name, u.Name, col)
			}
		}
		if u.Name == "" {
			u.Name = UniqueName(name, u.Columns...)
		}
		t.Uniques = append(t.Uniques, u)
	}
	return t, nil
}

func validateType(table string, f *Field) error {
	switch typ := f.Type.(type) {
	case nil:
		return fmt.Errorf("schema: table %q: column %q has no type", table, f.Name)
	case Numeric:
		if typ.Precision < 1 || typ.Scale < 0 || typ.Scale > typ.Precision {
			return fmt.Errorf("schema: table %q: column %q needs a valid numeric precision and scale", table, f.Name)
		}
	case Other:
		if typ.Name == "" {
			return fmt.Errorf("schema: table %q: column %q has an empty type name", table, f.Name)
		}
	}
	return nil
}
