// Package config loads and validates framework configuration from YAML.
//
// Configuration is layered: Default() provides working values for every
// field, and Load(path) merges a YAML file over those defaults before
// validating the result. Callers embedding the framework can also build
// a Config directly and call Validate themselves.
package config
