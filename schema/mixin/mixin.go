// Package mixin provides reusable field sets for entity definitions. A mixin
// is a function returning fields to splice into an entity's declaration:
//
//	ent := &schema.Entity{
//		Name:   "User",
//		Fields: append(mixin.Time(), field.Text("name").Descriptor()),
//	}
package mixin

import (
	"github.com/syssam/velopg/schema"
	"github.com/syssam/velopg/schema/field"
)

// Time returns created_at and updated_at timestamptz columns, both defaulting
// to the transaction timestamp. Keeping updated_at current on writes is the
// application's job; the schema only seeds it.
func Time() []schema.Field {
	return field.Descriptors(
		field.Timestamptz("created_at").Default("CURRENT_TIMESTAMP"),
		field.Timestamptz("updated_at").Default("CURRENT_TIMESTAMP"),
	)
}

// CreateTime returns only the created_at column.
func CreateTime() []schema.Field {
	return field.Descriptors(
		field.Timestamptz("created_at").Default("CURRENT_TIMESTAMP"),
	)
}

// SoftDelete returns a nullable deleted_at column. Rows are retired by
// setting it; the column itself is never a candidate for a safe drop.
func SoftDelete() []schema.Field {
	return field.Descriptors(
		field.Timestamptz("deleted_at").Optional(),
	)
}
