package consts

import "os"

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// ConfigFile is the name of the project configuration file
	ConfigFile = "anchor.yaml"

	// LockFile is the name of the per-migration pin lock file
	LockFile = "anchor.lock"

	// ScriptFile is the name of the entry point script within a migration directory
	ScriptFile = "migration.sql"

	// DefaultComponentsDir is the default location of reusable SQL components
	DefaultComponentsDir = "db/components"

	// DefaultMigrationsDir is the default location of migration directories
	DefaultMigrationsDir = "db/migrations"

	// DefaultTestsDir is the default location of SQL test fixtures
	DefaultTestsDir = "db/tests"

	// DefaultStoreDir is the default location of the content-addressed object store
	DefaultStoreDir = ".anchor/objects"

	// DefaultNamespace is the ledger namespace used when none is configured
	DefaultNamespace = "default"
)
