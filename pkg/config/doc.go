// Package config provides configuration management for larder.
//
// Configuration is loaded from a YAML file, overlaid with environment
// variables and validated before use:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention LARDER_SECTION_FIELD:
//
//   - LARDER_UPSTREAM_BASE_URL overrides upstream.base_url
//   - LARDER_UPSTREAM_USERNAME / LARDER_UPSTREAM_PASSWORD set Basic credentials
//   - LARDER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A .env file in the working directory is read first; variables already
// present in the process environment win over the file.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Reloading
//
// Watcher observes the configuration file and hands freshly validated
// configurations to a callback. Upstream settings are fixed at startup;
// callers decide which reloaded values they apply.
package config
