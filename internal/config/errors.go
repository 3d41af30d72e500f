package config

import "fmt"

// ConfigError is a fatal startup error describing exactly which file and field
// failed validation, so operators are not left with a bare parse error.
type ConfigError struct {
	File    string
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("configuration error in %s", e.File)
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(file string, field string, message string, err error) *ConfigError {
	return &ConfigError{
		File:    file,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
