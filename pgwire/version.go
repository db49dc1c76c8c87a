package pgwire

import (
	"fmt"
	"strconv"
	"strings"
)

// ServerVersion is a PostgreSQL version as an ordered list of numeric
// components, compared lexicographically.
type ServerVersion []int

// assumedVersion is the conservative floor assumed when the server version
// cannot be determined and no override was given. Every gated capability is
// off at this level.
var assumedVersion = ServerVersion{9, 4}

// upsertVersion is the first release with INSERT ... ON CONFLICT.
var upsertVersion = ServerVersion{9, 5}

// Compare orders two versions component by component. When one version is a
// prefix of the other, the shorter one is older.
func (v ServerVersion) Compare(o ServerVersion) int {
	for i := 0; i < len(v) && i < len(o); i++ {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(v) < len(o):
		return -1
	case len(v) > len(o):
		return 1
	}
	return 0
}

// AtLeast reports whether v is o or newer.
func (v ServerVersion) AtLeast(o ServerVersion) bool { return v.Compare(o) >= 0 }

func (v ServerVersion) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// ParseServerVersion reads the numeric dotted prefix of a server version
// string. Distribution suffixes and pre-release tags after the numbers are
// ignored, so "12.4 (Debian 12.4-1.pgdg100+1)" parses as 12.4.
func ParseServerVersion(s string) (ServerVersion, error) {
	var v ServerVersion
	for _, part := range strings.Split(strings.TrimSpace(s), ".") {
		i := 0
		for i < len(part) && part[i] >= '0' && part[i] <= '9' {
			i++
		}
		if i == 0 {
			break
		}
		n, err := strconv.Atoi(part[:i])
		if err != nil {
			break
		}
		v = append(v, n)
		if i != len(part) {
			break
		}
	}
	if len(v) == 0 {
		return nil, &VersionError{Raw: s}
	}
	return v, nil
}

// VersionError reports server version text with no usable numeric prefix.
type VersionError struct {
	Raw string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("pgwire: cannot determine server version from %q", e.Raw)
}

// Capabilities lists the version-gated features of one connection.
type Capabilities struct {
	// NativeUpsert is INSERT ... ON CONFLICT DO UPDATE for a single row.
	NativeUpsert bool
	// BulkConflictInsert is the multi-row VALUES form with a conflict clause.
	BulkConflictInsert bool
}

// CapabilitiesFor derives the capability set for a server version.
func CapabilitiesFor(v ServerVersion) Capabilities {
	return Capabilities{
		NativeUpsert:       v.AtLeast(upsertVersion),
		BulkConflictInsert: v.AtLeast(upsertVersion),
	}
}
