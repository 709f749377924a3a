package connector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no connector is registered or discoverable
// for a source type.
var ErrNotFound = errors.New("connector not found")

// ConfigError reports that a source's configuration is invalid for its connector.
type ConfigError struct {
	Type     string
	Problems []error
}

// NewConfigError builds a ConfigError for the connector type.
func NewConfigError(connectorType string, problems ...error) *ConfigError {
	return &ConfigError{Type: connectorType, Problems: problems}
}

func (e *ConfigError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("invalid %s configuration: %s", e.Type, strings.Join(msgs, "; "))
}

func (e *ConfigError) Unwrap() []error {
	return e.Problems
}

// ConnectionError reports that the source could not be reached or refused
// the credentials.
type ConnectionError struct {
	Type string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Type, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Error reports any other failure while collecting from a source.
type Error struct {
	Type string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s collection failed: %v", e.Type, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
