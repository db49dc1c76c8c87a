package migrate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/velopg/pgval"
	"github.com/syssam/velopg/pgwire"
	"github.com/syssam/velopg/schema"
)

// generatedExpressionsVersion is the first release whose catalogs expose
// generation_expression.
var generatedExpressionsVersion = pgwire.ServerVersion{12}

// Inspector reads table shapes back from the server catalogs. Rows that
// cannot be interpreted are collected rather than aborting the read, so one
// run reports every problem in a table.
type Inspector struct {
	exec    ExecQuerier
	version pgwire.ServerVersion
}

// NewInspector returns an Inspector gated on the given server version.
func NewInspector(exec ExecQuerier, version pgwire.ServerVersion) *Inspector {
	return &Inspector{exec: exec, version: version}
}

const columnsQuery = `SELECT column_name, is_nullable, udt_name, numeric_precision, numeric_scale, character_maximum_length, column_default%s
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`

const uniquesQuery = `SELECT tc.constraint_name, kcu.column_name
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
WHERE tc.table_schema = current_schema() AND tc.table_name = $1 AND tc.constraint_type = 'UNIQUE'
ORDER BY tc.constraint_name, kcu.ordinal_position`

const referenceQuery = `SELECT DISTINCT tc.constraint_name, ccu.table_name, rc.update_rule, rc.delete_rule
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
JOIN information_schema.constraint_column_usage AS ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.constraint_schema
JOIN information_schema.referential_constraints AS rc
  ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.constraint_schema
WHERE tc.table_schema = current_schema() AND tc.table_name = $1
  AND tc.constraint_type = 'FOREIGN KEY' AND kcu.column_name = $2
ORDER BY tc.constraint_name`

const tableExistsQuery = `SELECT EXISTS (SELECT 1 FROM pg_catalog.pg_tables WHERE schemaname = current_schema() AND tablename = $1)`

const tableNamesQuery = `SELECT tablename FROM pg_catalog.pg_tables
WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
ORDER BY tablename`

const extensionsQuery = `SELECT extname FROM pg_catalog.pg_extension ORDER BY extname`

// Table reads the live shape of the named table. It returns (nil, nil) when
// the table does not exist; a table that exists with no readable columns
// comes back with an empty column list.
func (in *Inspector) Table(ctx context.Context, name string) (*schema.Table, error) {
	genExpr := in.version.AtLeast(generatedExpressionsVersion)
	query := fmt.Sprintf(columnsQuery, "")
	if genExpr {
		query = fmt.Sprintf(columnsQuery, ", generation_expression")
	}
	rows, err := in.exec.Query(ctx, query, pgval.Text(name))
	if err != nil {
		return nil, fmt.Errorf("migrate: reading columns of %q: %w", name, err)
	}
	if len(rows) == 0 {
		exists, err := in.tableExists(ctx, name)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return &schema.Table{Name: name}, nil
	}

	t := &schema.Table{Name: name, Columns: make([]schema.Column, 0, len(rows))}
	var errs []error
	for _, row := range rows {
		col, err := in.parseColumn(ctx, name, row, genExpr)
		if err != nil {
			if !IsMissingPrecision(err) {
				err = NewIntrospectionError(name, columnNameOf(row), err)
			}
			errs = append(errs, err)
			continue
		}
		t.Columns = append(t.Columns, col)
	}

	uniques, err := in.uniques(ctx, name)
	if err != nil {
		errs = append(errs, err)
	}
	t.Uniques = uniques

	if err := NewAggregateError(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

// TableNames lists the user tables visible in the current database.
func (in *Inspector) TableNames(ctx context.Context) ([]string, error) {
	return in.nameList(ctx, tableNamesQuery)
}

// Extensions lists the extensions installed in the current database.
func (in *Inspector) Extensions(ctx context.Context) ([]string, error) {
	return in.nameList(ctx, extensionsQuery)
}

func (in *Inspector) nameList(ctx context.Context, query string) ([]string, error) {
	rows, err := in.exec.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		s, err := textAt(row, 0)
		if err != nil {
			return nil, fmt.Errorf("migrate: reading catalog listing: %w", err)
		}
		names = append(names, s)
	}
	return names, nil
}

func (in *Inspector) tableExists(ctx context.Context, name string) (bool, error) {
	rows, err := in.exec.Query(ctx, tableExistsQuery, pgval.Text(name))
	if err != nil {
		return false, fmt.Errorf("migrate: checking existence of %q: %w", name, err)
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return false, fmt.Errorf("migrate: existence check for %q returned %d rows", name, len(rows))
	}
	b, ok := rows[0][0].(pgval.Bool)
	if !ok {
		return false, fmt.Errorf("migrate: existence check for %q returned %T", name, rows[0][0])
	}
	return bool(b), nil
}

// parseColumn turns one information_schema.columns row into a column,
// resolving its foreign key with a follow-up per-column lookup.
func (in *Inspector) parseColumn(ctx context.Context, table string, row []pgval.Value, genExpr bool) (schema.Column, error) {
	want := 7
	if genExpr {
		want = 8
	}
	if len(row) != want {
		return schema.Column{}, fmt.Errorf("expected %d catalog fields, got %d", want, len(row))
	}
	name, err := textAt(row, 0)
	if err != nil {
		return schema.Column{}, fmt.Errorf("column_name: %w", err)
	}
	nullable, err := textAt(row, 1)
	if err != nil {
		return schema.Column{}, fmt.Errorf("is_nullable: %w", err)
	}
	udt, err := textAt(row, 2)
	if err != nil {
		return schema.Column{}, fmt.Errorf("udt_name: %w", err)
	}
	typ, err := columnType(table, name, udt, row)
	if err != nil {
		return schema.Column{}, err
	}
	def, _, err := nullableTextAt(row, 6)
	if err != nil {
		return schema.Column{}, fmt.Errorf("column_default: %w", err)
	}
	var generated string
	if genExpr {
		generated, _, err = nullableTextAt(row, 7)
		if err != nil {
			return schema.Column{}, fmt.Errorf("generation_expression: %w", err)
		}
	}
	ref, err := in.reference(ctx, table, name)
	if err != nil {
		return schema.Column{}, err
	}
	return schema.Column{
		Name:      name,
		Type:      typ,
		Nullable:  strings.EqualFold(nullable, "YES"),
		Default:   normalizeDefault(def),
		Generated: generated,
		Reference: ref,
	}, nil
}

// columnType maps a catalog type name onto the desired-schema type set.
// Types outside the set round-trip verbatim through Other, so a desired
// model that declares them with the catalog spelling stays stable.
func columnType(table, name, udt string, row []pgval.Value) (schema.ColumnType, error) {
	switch udt {
	case "bool":
		return schema.Bool{}, nil
	case "int2":
		return schema.Int2{}, nil
	case "int4":
		return schema.Int4{}, nil
	case "int8":
		return schema.Int8{}, nil
	case "float8":
		return schema.Float8{}, nil
	case "numeric":
		precision, ok, err := nullableIntAt(row, 3)
		if err != nil {
			return nil, fmt.Errorf("numeric_precision: %w", err)
		}
		if !ok {
			return nil, NewMissingPrecisionError(table, name)
		}
		scale, _, err := nullableIntAt(row, 4)
		if err != nil {
			return nil, fmt.Errorf("numeric_scale: %w", err)
		}
		return schema.Numeric{Precision: int(precision), Scale: int(scale)}, nil
	case "text":
		return schema.Text{}, nil
	case "varchar":
		size, ok, err := nullableIntAt(row, 5)
		if err != nil {
			return nil, fmt.Errorf("character_maximum_length: %w", err)
		}
		if !ok {
			return schema.Varchar{}, nil
		}
		return schema.Varchar{Size: int(size)}, nil
	case "bytea":
		return schema.Bytea{}, nil
	case "date":
		return schema.Date{}, nil
	case "time":
		return schema.TimeOfDay{}, nil
	case "timestamp":
		return schema.Timestamp{}, nil
	case "timestamptz":
		return schema.Timestamptz{}, nil
	case "interval":
		return schema.Interval{}, nil
	default:
		return schema.Other{Name: udt}, nil
	}
}

// reference resolves the foreign key constraint on one column, if any.
func (in *Inspector) reference(ctx context.Context, table, column string) (*schema.Reference, error) {
	rows, err := in.exec.Query(ctx, referenceQuery, pgval.Text(table), pgval.Text(column))
	if err != nil {
		return nil, fmt.Errorf("reading foreign key: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	if len(row) != 4 {
		return nil, fmt.Errorf("expected 4 foreign key fields, got %d", len(row))
	}
	name, err := textAt(row, 0)
	if err != nil {
		return nil, fmt.Errorf("constraint_name: %w", err)
	}
	target, err := textAt(row, 1)
	if err != nil {
		return nil, fmt.Errorf("referenced table_name: %w", err)
	}
	update, err := textAt(row, 2)
	if err != nil {
		return nil, fmt.Errorf("update_rule: %w", err)
	}
	del, err := textAt(row, 3)
	if err != nil {
		return nil, fmt.Errorf("delete_rule: %w", err)
	}
	return &schema.Reference{
		Name:     name,
		Table:    target,
		OnUpdate: schema.ReferenceAction(update),
		OnDelete: schema.ReferenceAction(del),
	}, nil
}

// uniques reads the named unique constraints of a table, column order
// preserved.
func (in *Inspector) uniques(ctx context.Context, table string) ([]schema.Unique, error) {
	rows, err := in.exec.Query(ctx, uniquesQuery, pgval.Text(table))
	if err != nil {
		return nil, fmt.Errorf("migrate: reading unique constraints of %q: %w", table, err)
	}
	var uniques []schema.Unique
	for _, row := range rows {
		if len(row) != 2 {
			return nil, NewIntrospectionError(table, "", fmt.Errorf("expected 2 unique constraint fields, got %d", len(row)))
		}
		name, err := textAt(row, 0)
		if err != nil {
			return nil, NewIntrospectionError(table, "", fmt.Errorf("constraint_name: %w", err))
		}
		column, err := textAt(row, 1)
		if err != nil {
			return nil, NewIntrospectionError(table, "", fmt.Errorf("unique column_name: %w", err))
		}
		if n := len(uniques); n > 0 && uniques[n-1].Name == name {
			uniques[n-1].Columns = append(uniques[n-1].Columns, column)
			continue
		}
		uniques = append(uniques, schema.Unique{Name: name, Columns: []string{column}})
	}
	return uniques, nil
}

// castSuffix matches the type cast the server appends to stored default
// expressions, e.g. 'foo'::character varying.
var castSuffix = regexp.MustCompile(`::[a-zA-Z_][a-zA-Z0-9_ ]*(\(\d+(,\s*\d+)?\))?$`)

// normalizeDefault strips the trailing type cast from a live default
// expression, so it compares equal to the declared form.
func normalizeDefault(def string) string {
	return castSuffix.ReplaceAllString(def, "")
}

// columnNameOf pulls the column name out of a catalog row for error
// reporting, best effort.
func columnNameOf(row []pgval.Value) string {
	if len(row) == 0 {
		return ""
	}
	s, err := textAt(row, 0)
	if err != nil {
		return ""
	}
	return s
}

func textAt(row []pgval.Value, i int) (string, error) {
	if i >= len(row) {
		return "", fmt.Errorf("missing field %d", i)
	}
	switch v := row[i].(type) {
	case pgval.Text:
		return string(v), nil
	case pgval.Raw:
		return string(v), nil
	default:
		return "", fmt.Errorf("field %d: expected text, got %T", i, row[i])
	}
}

func nullableTextAt(row []pgval.Value, i int) (string, bool, error) {
	if i >= len(row) {
		return "", false, fmt.Errorf("missing field %d", i)
	}
	if pgval.IsNull(row[i]) {
		return "", false, nil
	}
	s, err := textAt(row, i)
	return s, err == nil, err
}

func nullableIntAt(row []pgval.Value, i int) (int64, bool, error) {
	if i >= len(row) {
		return 0, false, fmt.Errorf("missing field %d", i)
	}
	switch v := row[i].(type) {
	case pgval.Null:
		return 0, false, nil
	case pgval.Int64:
		return int64(v), true, nil
	case pgval.Text:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("field %d: %w", i, err)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("field %d: expected integer, got %T", i, row[i])
	}
}
