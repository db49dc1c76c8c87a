package pgwire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSQL(t *testing.T) {
	q := newFakeQueryer()
	c, err := NewConn(context.Background(), q, pinned(9, 5))
	require.NoError(t, err)

	stmt, err := c.UpsertSQL("users", []string{"id", "email"}, []string{"id"}, []string{"email"})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "users" ("id", "email") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "email" = EXCLUDED."email"`,
		stmt)

	stmt, err = c.UpsertSQL("users", []string{"id"}, []string{"id"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("id") VALUES ($1) ON CONFLICT ("id") DO NOTHING`, stmt)

	stmt, err = c.UpsertSQL("users", []string{"id"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("id") VALUES ($1) ON CONFLICT DO NOTHING`, stmt)
}

func TestBulkUpsertSQL(t *testing.T) {
	q := newFakeQueryer()
	c, err := NewConn(context.Background(), q, pinned(12, 4))
	require.NoError(t, err)

	stmt, err := c.BulkUpsertSQL("t", []string{"a", "b"}, []string{"a"}, []string{"b"}, 3)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "t" ("a", "b") VALUES ($1, $2), ($3, $4), ($5, $6) ON CONFLICT ("a") DO UPDATE SET "b" = EXCLUDED."b"`,
		stmt)

	_, err = c.BulkUpsertSQL("t", []string{"a"}, []string{"a"}, nil, 0)
	assert.Error(t, err)
}

func TestUpsertGatedByVersion(t *testing.T) {
	q := newFakeQueryer()
	c, err := NewConn(context.Background(), q, pinned(9, 4))
	require.NoError(t, err)

	_, err = c.UpsertSQL("t", []string{"a"}, []string{"a"}, nil)
	require.Error(t, err)
	var ce *CapabilityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ServerVersion{9, 4}, ce.Version)

	_, err = c.BulkUpsertSQL("t", []string{"a"}, []string{"a"}, nil, 2)
	assert.ErrorAs(t, err, &ce)
}

func TestConflictInsertValidation(t *testing.T) {
	_, err := conflictInsertSQL("t", nil, nil, nil, 1)
	assert.Error(t, err)

	_, err = conflictInsertSQL("t", []string{"a"}, nil, []string{"a"}, 1)
	assert.Error(t, err)
}
