package config

import "errors"

// Sentinel errors for configuration handling.
var (
	// ErrInvalid indicates a configuration value that fails validation.
	ErrInvalid = errors.New("invalid configuration")

	// ErrUnknownKey indicates a dotted key that does not name a setting.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrSecretKey indicates an attempt to store a secret in the config file.
	ErrSecretKey = errors.New("secrets cannot be stored in the config file")
)
