package collect

import (
	"errors"

	"github.com/elhajjaji/wara9a/internal/logging"
	"github.com/elhajjaji/wara9a/pkg/models"
)

// ErrMergeAmbiguity is returned by a Merger that finds conflicting entity
// IDs across sources. FirstWins never returns it.
var ErrMergeAmbiguity = errors.New("ambiguous merge: conflicting data across sources")

// Merger combines the data of every successful source, given in declared
// order, into the value used for generation. It returns nil when data is
// empty.
type Merger interface {
	Merge(data []*models.ProjectData) (*models.ProjectData, error)
}

// FirstWins adopts the first source's data as-is and discards the rest.
type FirstWins struct{}

func (FirstWins) Merge(data []*models.ProjectData) (*models.ProjectData, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) > 1 {
		logging.Debug("discarding data from later sources",
			"kept", data[0].SourceType,
			"discarded", len(data)-1)
	}
	return data[0], nil
}
