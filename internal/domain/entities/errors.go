package entities

import (
	"errors"
	"fmt"
)

// ErrConfiguration classifies every error caused by invalid configuration or
// a missing environment variable, as opposed to I/O or remote failures
var ErrConfiguration = errors.New("configuration error")

// ConfigError describes a configuration problem. Variable is set when the
// problem is a missing environment variable.
type ConfigError struct {
	Msg      string
	Variable string
	Err      error
}

// NewConfigError creates a configuration error with a message
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{Msg: msg}
}

// MissingVariableError reports an unset or empty environment variable
func MissingVariableError(variable string) *ConfigError {
	return &ConfigError{
		Msg:      fmt.Sprintf("environment variable %s is not set", variable),
		Variable: variable,
	}
}

func (e *ConfigError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, ErrConfiguration) {
		return fmt.Sprintf("%s: %s: %v", ErrConfiguration, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Msg)
}

// Is makes every ConfigError match ErrConfiguration
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
