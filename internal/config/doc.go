// Package config defines the application configuration surface and
// its loading from environment variables and optional config files.
package config
