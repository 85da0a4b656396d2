// Package cmd implements the anchor CLI: project scaffolding, migration
// management (new, pin, build, apply, adopt, status), and SQL test fixtures
// (build, run, expect, compare). Commands are assembled through fx and
// registered with the urfave/cli application in Run.
package cmd
