// Package config provides centralized application configuration.
//
// Configuration is merged from three sources, in increasing precedence:
// struct-tag defaults, an optional config.yaml file (the only place the
// mapping list can be declared) and environment variables. A .env file is
// loaded into the environment first when present.
//
// Nested keys map to underscore-separated environment variables, e.g.
// SYNC_DEBOUNCE_DELAY_SECONDS -> sync.debounce_delay_seconds.
package config
