// Package project manages the on-disk layout of an anchor project: the
// configuration file, the components directory, one directory per migration
// (entry point script, optional variables file, optional pin lock file), and
// SQL test fixtures. Scaffolding is idempotent so init can be re-run safely.
package project
