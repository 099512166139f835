package env

import "os"

// Get reads an environment variable, falling back when unset or empty.
// Used during logger bootstrap before the typed config has loaded.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
