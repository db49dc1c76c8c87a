package pgwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerVersion(t *testing.T) {
	tests := []struct {
		in   string
		want ServerVersion
	}{
		{"9.4", ServerVersion{9, 4}},
		{"9.5.2", ServerVersion{9, 5, 2}},
		{"10", ServerVersion{10}},
		{"9.5beta1", ServerVersion{9, 5}},
		{"12.4 (Debian 12.4-1.pgdg100+1)", ServerVersion{12, 4}},
		{" 13.2 ", ServerVersion{13, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseServerVersion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseServerVersionErrors(t *testing.T) {
	for _, in := range []string{"", "PostgreSQL", "(Debian)", "v12"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseServerVersion(in)
			require.Error(t, err)
			var ve *VersionError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, in, ve.Raw)
		})
	}
}

func TestServerVersionCompare(t *testing.T) {
	tests := []struct {
		a, b ServerVersion
		want int
	}{
		{ServerVersion{9, 4}, ServerVersion{9, 5}, -1},
		{ServerVersion{9, 5}, ServerVersion{9, 4}, 1},
		{ServerVersion{9, 5}, ServerVersion{9, 5}, 0},
		{ServerVersion{10}, ServerVersion{9, 6}, 1},
		{ServerVersion{9}, ServerVersion{9, 0}, -1},
		{ServerVersion{12, 4}, ServerVersion{9, 5}, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Compare(tt.b), "%s vs %s", tt.a, tt.b)
	}
	assert.True(t, ServerVersion{9, 5}.AtLeast(ServerVersion{9, 5}))
	assert.False(t, ServerVersion{9, 4, 9}.AtLeast(ServerVersion{9, 5}))
}

func TestCapabilitiesFor(t *testing.T) {
	off := CapabilitiesFor(ServerVersion{9, 4})
	assert.False(t, off.NativeUpsert)
	assert.False(t, off.BulkConflictInsert)

	on := CapabilitiesFor(ServerVersion{9, 5})
	assert.True(t, on.NativeUpsert)
	assert.True(t, on.BulkConflictInsert)

	modern := CapabilitiesFor(ServerVersion{12, 4})
	assert.True(t, modern.NativeUpsert)
}
