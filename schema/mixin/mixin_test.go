package mixin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velopg/schema"
	"github.com/syssam/velopg/schema/field"
	"github.com/syssam/velopg/schema/mixin"
)

func TestTime(t *testing.T) {
	fields := mixin.Time()
	require.Len(t, fields, 2)
	assert.Equal(t, "created_at", fields[0].Name)
	assert.Equal(t, "updated_at", fields[1].Name)
	for _, f := range fields {
		assert.Equal(t, schema.Timestamptz{}, f.Type)
		assert.Equal(t, "CURRENT_TIMESTAMP", f.Default)
		assert.False(t, f.Optional)
	}
}

func TestCreateTime(t *testing.T) {
	fields := mixin.CreateTime()
	require.Len(t, fields, 1)
	assert.Equal(t, "created_at", fields[0].Name)
}

func TestSoftDelete(t *testing.T) {
	fields := mixin.SoftDelete()
	require.Len(t, fields, 1)
	assert.Equal(t, "deleted_at", fields[0].Name)
	assert.True(t, fields[0].Optional)
	assert.False(t, fields[0].SafeToRemove)
}

func TestMixinCompiles(t *testing.T) {
	table, err := schema.Compile(&schema.Entity{
		Name:   "Session",
		Fields: append(mixin.Time(), field.Text("token").Unique().Descriptor()),
	})
	require.NoError(t, err)
	names := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "created_at", "updated_at", "token"}, names)
}
