// Package logging builds the slog loggers used across capstan.
//
// Two output formats are supported: a compact console format for interactive
// use and JSON for machine consumption. The "auto" format picks console when
// stdout is a terminal. Field name constants keep attribute keys consistent
// between the daemon, the workflow manager, and the CLI.
package logging
