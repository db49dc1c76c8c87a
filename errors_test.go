package velopg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velopg"
	"github.com/syssam/velopg/migrate"
)

func TestConnError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := velopg.NewConnError(errors.New("dial tcp: connection refused"))
		assert.Equal(t, "velopg: connect: dial tcp: connection refused", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("handshake failed")
		err := velopg.NewConnError(underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsConnError", func(t *testing.T) {
		err := velopg.NewConnError(errors.New("refused"))
		assert.True(t, velopg.IsConnError(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, velopg.IsConnError(wrapped))

		// Non-matching error
		assert.False(t, velopg.IsConnError(errors.New("other error")))
		assert.False(t, velopg.IsConnError(nil))
	})
}

func TestReconcileError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := velopg.NewReconcileError("User", errors.New("boom"))
		assert.Equal(t, "velopg: reconciling User: boom", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("statement failed")
		err := velopg.NewReconcileError("Post", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsReconcileError", func(t *testing.T) {
		err := velopg.NewReconcileError("Comment", errors.New("boom"))
		assert.True(t, velopg.IsReconcileError(err))

		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, velopg.IsReconcileError(wrapped))

		assert.False(t, velopg.IsReconcileError(errors.New("other error")))
		assert.False(t, velopg.IsReconcileError(nil))
	})
}

func TestConfigError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := velopg.NewConfigError("velopg.yaml", errors.New("yaml: line 3: mapping values"))
		assert.Equal(t, `velopg: options "velopg.yaml": yaml: line 3: mapping values`, err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("no such file")
		err := velopg.NewConfigError("missing.yaml", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsConfigError", func(t *testing.T) {
		err := velopg.NewConfigError("velopg.yaml", errors.New("bad"))
		assert.True(t, velopg.IsConfigError(err))

		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, velopg.IsConfigError(wrapped))

		assert.False(t, velopg.IsConfigError(errors.New("other error")))
		assert.False(t, velopg.IsConfigError(nil))
	})
}

// TestSharedTaxonomy checks the re-exported error surface matches what the
// engine packages raise.
func TestSharedTaxonomy(t *testing.T) {
	t.Run("UnsafeError", func(t *testing.T) {
		err := error(&velopg.UnsafeError{Statements: []string{`ALTER TABLE "users" DROP COLUMN "legacy"`}})
		assert.True(t, velopg.IsUnsafe(err))
		assert.True(t, migrate.IsUnsafe(err))
		assert.True(t, errors.Is(err, velopg.ErrUnsafe))
	})

	t.Run("MissingPrecisionError", func(t *testing.T) {
		err := error(&velopg.MissingPrecisionError{Table: "orders", Column: "total"})
		assert.True(t, velopg.IsMissingPrecision(err))
		assert.True(t, velopg.IsMissingPrecision(fmt.Errorf("wrap: %w", err)))
	})

	t.Run("IntrospectionError", func(t *testing.T) {
		err := error(migrate.NewIntrospectionError("users", "age", errors.New("bad row")))
		assert.True(t, velopg.IsIntrospection(err))
	})

	t.Run("Sentinels", func(t *testing.T) {
		require.Error(t, velopg.ErrNoChanges)
		assert.Contains(t, velopg.ErrNoChanges.Error(), "no schema changes")
		require.Error(t, velopg.ErrUnsafe)
		assert.Contains(t, velopg.ErrUnsafe.Error(), "unsafe")
	})
}
