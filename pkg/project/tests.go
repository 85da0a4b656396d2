package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type (
	// TestCase is one SQL test fixture: a templated script plus an optional
	// recorded expectation of the engine output it produces.
	TestCase struct {
		// Name is the fixture name without extension.
		Name string

		// Dir is the tests directory containing the fixture.
		Dir string
	}
)

// ScriptPath returns the path of the fixture's templated SQL script.
func (t *TestCase) ScriptPath() string {
	return filepath.Join(t.Dir, t.Name+".sql")
}

// ExpectedPath returns the path of the fixture's recorded expected output.
func (t *TestCase) ExpectedPath() string {
	return filepath.Join(t.Dir, t.Name+".expected")
}

// LoadTests lists the test fixtures under dir in lexicographic name order.
func LoadTests(dir string) ([]*TestCase, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tests directory %s", dir)
	}

	var tests []*TestCase
	for _, dirent := range dirents {
		if dirent.IsDir() || !strings.HasSuffix(dirent.Name(), ".sql") {
			continue
		}

		tests = append(tests, &TestCase{
			Name: strings.TrimSuffix(dirent.Name(), ".sql"),
			Dir:  dir,
		})
	}

	return tests, nil
}

// FindTest returns the named fixture under dir, failing when its script is
// missing.
func FindTest(dir, name string) (*TestCase, error) {
	t := &TestCase{Name: name, Dir: dir}
	if _, err := os.Stat(t.ScriptPath()); err != nil {
		return nil, errors.Wrapf(err, "test %s not found in %s", name, dir)
	}

	return t, nil
}
