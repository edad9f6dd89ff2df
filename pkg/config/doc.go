// Package config assembles the server configuration once at startup from
// built-in defaults, an optional YAML file, a .env file and environment
// variables.
package config
