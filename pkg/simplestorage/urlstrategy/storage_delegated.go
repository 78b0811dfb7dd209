package urlstrategy

import "github.com/tendant/simple-storage/pkg/simplestorage"

// StorageDelegatedStrategy delegates URL generation to the adapter's own
// template. This is what a service uses when no strategy is configured.
type StorageDelegatedStrategy struct {
	Adapter simplestorage.Adapter
}

// NewStorageDelegatedStrategy creates a new storage-delegated URL strategy
func NewStorageDelegatedStrategy(adapter simplestorage.Adapter) *StorageDelegatedStrategy {
	return &StorageDelegatedStrategy{Adapter: adapter}
}

func (s *StorageDelegatedStrategy) URL(fullPath string) string {
	return s.Adapter.URL(fullPath)
}
