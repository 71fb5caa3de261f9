// Package config loads and validates capstan configuration.
//
// Configuration comes from a TOML file (default ~/.config/capstan/config.toml,
// or capstan.toml in the working directory), with environment variable
// overrides for a small set of fields. Load returns a fully normalized config:
// paths are expanded and absolute, and every section has passed validation.
package config
