// Package pgwire drives statements over a single PostgreSQL session and
// translates values across the text wire format.
//
// A Conn wraps one backend session, usually a *pgconn.PgConn obtained with
// Connect. Statements are prepared once per connection and cached by their
// SQL text; the cache belongs to the Conn and dies with it. Query returns a
// Rows pull cursor that decodes each column through the Codec registry,
// keyed by the column's type OID. Unregistered result types degrade to
// pgval.Raw instead of failing.
//
// The server version is read when the Conn opens and selects the gated
// capability set, such as native upsert on 9.5 and later. When the version
// cannot be determined the Conn assumes a conservative floor.
//
// A Conn is single-threaded. Nothing in this package locks; callers needing
// concurrency open one Conn per concurrently active session.
package pgwire
