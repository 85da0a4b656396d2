package project

import (
	_ "embed"
	"os"
	"path/filepath"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/consts"
)

var (
	//go:embed embed/anchor.yaml
	defaultConfig []byte

	//go:embed embed/migration.sql
	defaultMigration []byte

	//go:embed embed/vars.yaml
	defaultVars []byte

	image = fstest.MapFS{
		"db":             {Mode: os.ModeDir | consts.ModeDir},
		"db/components":  {Mode: os.ModeDir | consts.ModeDir},
		"db/migrations":  {Mode: os.ModeDir | consts.ModeDir},
		"db/tests":       {Mode: os.ModeDir | consts.ModeDir},
		consts.ConfigFile: {Data: defaultConfig},
	}
)

type (
	// Project manages the on-disk layout of an anchor project: the config
	// file, component and migration directories, and test fixtures.
	Project struct {
		root string
	}
)

// New creates a Project for the given root directory. The directory must
// exist; Initialize creates everything beneath it.
func New(root string) *Project {
	return &Project{root: root}
}

// Initialize sets up the project directory structure and configuration file.
// It is idempotent: only missing files and directories are created, existing
// content is preserved.
//
// Example:
//
//	p := project.New(".")
//	if err := p.Initialize(); err != nil {
//		log.Fatal(err)
//	}
func (p *Project) Initialize() error {
	info, err := os.Stat(p.root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat project root %s", p.root)
	}
	if !info.IsDir() {
		return errors.Errorf("project root %s is not a directory", p.root)
	}

	for name, entry := range image {
		path := filepath.Join(p.root, filepath.FromSlash(name))

		if entry.Mode.IsDir() {
			if err := os.MkdirAll(path, consts.ModeDir); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", path)
			}
			continue
		}

		if _, err := os.Stat(path); err == nil {
			continue
		}

		if err := os.WriteFile(path, entry.Data, consts.ModeFile); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
	}

	return nil
}

// Root returns the project root directory.
func (p *Project) Root() string {
	return p.root
}
