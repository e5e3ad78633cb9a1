// Package config loads application configuration from CEA_-prefixed
// environment variables, optionally merged with a YAML config file.
// Environment values take precedence. Store connection credentials are
// optional here; their absence only becomes an error when the hosted
// store is actually needed, and that error is a configuration failure,
// never an authentication one.
package config
