// Package connector defines the capability every data source implements and
// the registry that maps source types onto connector implementations.
package connector

import (
	"context"
	"fmt"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// Category groups connectors by the kind of system they read from.
type Category string

const (
	CategoryTicketing Category = "ticketing"
	CategoryCodeHost  Category = "code-host"
	CategoryFiles     Category = "files"
)

// Connector collects project data from one kind of source.
//
// Collect must not mutate shared state outside its return value, so it is
// safe to retry and safe to run concurrently for different sources.
type Connector interface {
	// Type is the identifier used in the "type" field of a source record.
	Type() string
	Category() Category
	DisplayName() string
	Description() string

	RequiredConfigFields() []string
	OptionalConfigFields() []string

	// ValidateConfig returns every problem found in src. An empty result
	// means the source can be collected.
	ValidateConfig(src config.Source) []error

	// Collect fetches and normalizes the source's data. It fails with
	// *ConfigError, *ConnectionError or *Error.
	Collect(ctx context.Context, src config.Source) (*models.ProjectData, error)
}

// Info is a printable summary of a connector.
type Info struct {
	Type           string
	DisplayName    string
	Description    string
	Category       Category
	RequiredFields []string
	OptionalFields []string
}

// Describe returns the Info of c.
func Describe(c Connector) Info {
	return Info{
		Type:           c.Type(),
		DisplayName:    c.DisplayName(),
		Description:    c.Description(),
		Category:       c.Category(),
		RequiredFields: c.RequiredConfigFields(),
		OptionalFields: c.OptionalConfigFields(),
	}
}

// connectionProbeLimit caps every collection limit during TestConnection.
const connectionProbeLimit = 1

// Probe performs a collection with minimal limits and discards the data.
func Probe(ctx context.Context, c Connector, src config.Source) error {
	if errs := c.ValidateConfig(src); len(errs) > 0 {
		return NewConfigError(c.Type(), errs...)
	}
	if _, err := c.Collect(ctx, src.Limited(connectionProbeLimit)); err != nil {
		return fmt.Errorf("connection test for %s failed: %w", src.Name, err)
	}
	return nil
}

// TestConnection reports whether Probe succeeds. Failures are logged, not returned.
func TestConnection(ctx context.Context, c Connector, src config.Source) bool {
	if err := Probe(ctx, c, src); err != nil {
		logging.Warn("connection test failed", "source", src.Name, "type", src.Type, "error", err)
		return false
	}
	return true
}
