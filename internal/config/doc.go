// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Load parses, LoadWithDefaults fills optional fields, LoadAndValidate also
// rejects incomplete or inconsistent settings.
package config
