// Package env reads process environment variables for the few spots that
// need a value before the full config is loaded, such as picking the log
// format at logger construction.
package env

import "os"

// Get returns the variable's value, or fallback when it is unset or empty.
// Empty counts as unset so `FOO=` in a unit file does not silently disable
// a default.
func Get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
