// Package config loads the LDM server configuration from a YAML
// manifest into a resolved, defaulted Config.
package config
