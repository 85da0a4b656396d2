package project

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/consts"
)

var migrationName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type (
	// Migration is one migration directory: an entry point script plus an
	// optional variables file and pin lock file.
	Migration struct {
		// Name is the directory name, e.g. "20240101120000_create_users".
		Name string

		// Dir is the full path to the migration directory.
		Dir string
	}
)

// ScriptPath returns the path of the migration's entry point script.
func (m *Migration) ScriptPath() string {
	return filepath.Join(m.Dir, consts.ScriptFile)
}

// LockPath returns the path of the migration's pin lock file.
func (m *Migration) LockPath() string {
	return filepath.Join(m.Dir, consts.LockFile)
}

// VarsPath returns the path of the migration's variables file, or "" if none
// exists. The first of vars.json, vars.toml, vars.yaml, vars.yml wins.
func (m *Migration) VarsPath() string {
	for _, name := range []string{"vars.json", "vars.toml", "vars.yaml", "vars.yml"} {
		path := filepath.Join(m.Dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadMigrations lists the migrations under dir in lexicographic name order.
// A subdirectory is a migration iff it contains the entry point script.
func LoadMigrations(dir string) ([]*Migration, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read migrations directory %s", dir)
	}

	var migrations []*Migration
	for _, dirent := range dirents {
		if !dirent.IsDir() {
			continue
		}

		m := &Migration{Name: dirent.Name(), Dir: filepath.Join(dir, dirent.Name())}
		if _, err := os.Stat(m.ScriptPath()); err != nil {
			continue
		}

		migrations = append(migrations, m)
	}

	return migrations, nil
}

// FindMigration returns the named migration under dir, failing when the
// directory or its entry point script is missing.
func FindMigration(dir, name string) (*Migration, error) {
	m := &Migration{Name: name, Dir: filepath.Join(dir, name)}
	if _, err := os.Stat(m.ScriptPath()); err != nil {
		return nil, errors.Wrapf(err, "migration %s not found in %s", name, dir)
	}

	return m, nil
}

// CreateMigration scaffolds a new migration directory named
// <utc timestamp>_<name> containing a stub entry point script and an empty
// variables file.
func CreateMigration(dir, name string) (*Migration, error) {
	if !migrationName.MatchString(name) {
		return nil, errors.Errorf("invalid migration name %q: use letters, digits, _ and -", name)
	}

	version := time.Now().UTC().Format("20060102150405") + "_" + name
	m := &Migration{Name: version, Dir: filepath.Join(dir, version)}

	if err := os.MkdirAll(m.Dir, consts.ModeDir); err != nil {
		return nil, errors.Wrapf(err, "failed to create migration directory %s", m.Dir)
	}

	if err := os.WriteFile(m.ScriptPath(), defaultMigration, consts.ModeFile); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", m.ScriptPath())
	}

	varsPath := filepath.Join(m.Dir, "vars.yaml")
	if err := os.WriteFile(varsPath, defaultVars, consts.ModeFile); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", varsPath)
	}

	return m, nil
}
