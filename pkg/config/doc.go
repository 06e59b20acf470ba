// Package config defines the gateway configuration: YAML file loading,
// default values, environment variable overrides, and validation.
//
// The loading sequence is file, then defaults, then environment, then
// validation. Secrets (the operator key spec and the operator secret)
// normally arrive through the environment or an optional .env file so
// they stay out of the config file on disk.
package config
