// Package config loads the service configuration.
//
// Values are layered: built-in defaults, then an optional YAML or JSON file,
// then environment variables. Secrets such as OAuth client secrets and the
// model API key are normally supplied through the environment.
package config
