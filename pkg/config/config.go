package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/consts"
	"gopkg.in/yaml.v3"
)

type (
	// Database holds the connection settings for the target PostgreSQL
	// instance and the ledger namespace used for migration history.
	Database struct {
		// URL is the connection string passed to the database engine.
		// Prefer URLEnv in committed configuration to keep credentials out
		// of the repository.
		URL string `yaml:"url,omitempty"`

		// URLEnv names an environment variable holding the connection
		// string. It takes precedence over URL when set and non-empty.
		URLEnv string `yaml:"url_env,omitempty"`

		// Namespace scopes ledger rows and advisory locking. Two projects
		// sharing one database can migrate independently under different
		// namespaces.
		Namespace string `yaml:"namespace,omitempty"`
	}

	// Config represents the project configuration for templated migrations.
	Config struct {
		// Components is the directory holding reusable SQL template
		// fragments.
		Components string `yaml:"components"`

		// Migrations is the directory holding one subdirectory per
		// migration.
		Migrations string `yaml:"migrations"`

		// Tests is the directory holding SQL test fixtures.
		Tests string `yaml:"tests,omitempty"`

		// Store is the directory backing the content-addressed object
		// store used for pinning.
		Store string `yaml:"store,omitempty"`

		// Database contains the target database settings.
		Database Database `yaml:"database"`
	}
)

// LoadConfig parses a project configuration from the provided io.Reader.
// Unset directories fall back to the standard project layout and the
// namespace defaults to consts.DefaultNamespace.
//
// Example:
//
//	yamlData := `
//	components: db/components
//	migrations: db/migrations
//	database:
//	  url_env: DATABASE_URL
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		panic(err)
//	}
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal project config")
	}

	if cfg.Components == "" {
		cfg.Components = consts.DefaultComponentsDir
	}
	if cfg.Migrations == "" {
		cfg.Migrations = consts.DefaultMigrationsDir
	}
	if cfg.Tests == "" {
		cfg.Tests = consts.DefaultTestsDir
	}
	if cfg.Store == "" {
		cfg.Store = consts.DefaultStoreDir
	}
	if cfg.Database.Namespace == "" {
		cfg.Database.Namespace = consts.DefaultNamespace
	}

	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the specified file path.
// This is a convenience function that opens the file and calls LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// DatabaseURL resolves the effective connection string, preferring URLEnv
// when it names a non-empty environment variable.
func (c *Config) DatabaseURL() string {
	if c.Database.URLEnv != "" {
		if url := os.Getenv(c.Database.URLEnv); url != "" {
			return url
		}
	}
	return c.Database.URL
}
