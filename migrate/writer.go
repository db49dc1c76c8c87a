package migrate

import (
	"fmt"

	atlas "ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/sqltool"
)

// Dir is the migration directory plans are written into.
type Dir = atlas.Dir

// DirFor opens a local migration directory laid out for the named tool.
// Known tools: golang-migrate, goose, flyway, liquibase and dbmate. An
// empty name selects the plain layout.
func DirFor(tool, path string) (Dir, error) {
	switch tool {
	case "":
		return atlas.NewLocalDir(path)
	case "golang-migrate":
		return sqltool.NewGolangMigrateDir(path)
	case "goose":
		return sqltool.NewGooseDir(path)
	case "flyway":
		return sqltool.NewFlywayDir(path)
	case "liquibase":
		return sqltool.NewLiquibaseDir(path)
	case "dbmate":
		return sqltool.NewDBMateDir(path)
	default:
		return nil, fmt.Errorf("migrate: unknown migration tool %q", tool)
	}
}

// formatterFor picks the statement formatter matching the directory's
// migration tool.
func formatterFor(dir Dir) atlas.Formatter {
	switch dir.(type) {
	case *sqltool.GolangMigrateDir:
		return sqltool.GolangMigrateFormatter
	case *sqltool.GooseDir:
		return sqltool.GooseFormatter
	case *sqltool.DBMateDir:
		return sqltool.DBMateFormatter
	case *sqltool.FlywayDir:
		return sqltool.FlywayFormatter
	case *sqltool.LiquibaseDir:
		return sqltool.LiquibaseFormatter
	default:
		return sqltool.GolangMigrateFormatter
	}
}

// WritePlan renders the plan into versioned migration files for the tool
// owning the directory. An empty plan returns ErrNoChanges and writes
// nothing.
func WritePlan(plan *Plan, dir Dir, name string) error {
	if plan.Empty() {
		return ErrNoChanges
	}
	changes := make([]*atlas.Change, len(plan.Steps))
	for i, step := range plan.Steps {
		changes[i] = &atlas.Change{Cmd: step.SQL}
	}
	files, err := formatterFor(dir).Format(&atlas.Plan{Name: name, Changes: changes})
	if err != nil {
		return fmt.Errorf("migrate: formatting plan %s: %w", plan.ID, err)
	}
	for _, f := range files {
		if err := dir.WriteFile(f.Name(), f.Bytes()); err != nil {
			return fmt.Errorf("migrate: writing %s: %w", f.Name(), err)
		}
	}
	return nil
}
