package store

import "go.ngs.io/storage-anomaly/internal/domain"

// DatasetLoader is the interface for loading gridded input datasets.
type DatasetLoader interface {
	// Load returns the named dataset (e.g., "GRC" or "NOAH").
	Load(name string) (*domain.Dataset, error)

	// Names lists the datasets the loader can provide.
	Names() []string
}
