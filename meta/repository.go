package meta

import (
	"context"
	"fmt"
)

// StoreNotFoundError indicates the named store is absent from the repository.
type StoreNotFoundError struct {
	// StoreName is the store that could not be found.
	StoreName string
}

func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("store %q not found", e.StoreName)
}

// ReadWriteStoreRepository provides read/write access to store metadata.
// Implementations carry their own locking; callers holding the monitor's
// lock may call into the repository but never the other way around.
type ReadWriteStoreRepository interface {
	// GetStore returns a copy of the named store's metadata.
	// Returns a StoreNotFoundError if the store does not exist.
	GetStore(storeName string) (*Store, error)

	// UpdateStore persists the store's metadata.
	// Returns a StoreNotFoundError if the store does not exist.
	UpdateStore(ctx context.Context, store *Store) error

	// Refresh re-reads store metadata from the source of truth, picking up
	// stores created since the last refresh.
	Refresh(ctx context.Context) error
}

// StoreCleaner removes resources of retired store versions. All operations
// are cluster-scoped.
type StoreCleaner interface {
	// DeleteOneStoreVersion removes one version of a store and its backing
	// resources.
	DeleteOneStoreVersion(ctx context.Context, clusterName, storeName string, versionNumber int) error

	// RetireOldStoreVersions removes versions older than the store's backup
	// window.
	RetireOldStoreVersions(ctx context.Context, clusterName, storeName string) error

	// TopicCleanupWhenPushComplete reclaims topic resources that are no
	// longer needed once a push has completed.
	TopicCleanupWhenPushComplete(ctx context.Context, clusterName, storeName string, versionNumber int) error
}

// TopicReplicator starts buffer replay for hybrid stores: it replays the
// store's real-time topic on top of the freshly pushed version topic.
type TopicReplicator interface {
	// PrepareAndStartReplication begins replicating the real-time topic into
	// the version topic.
	PrepareAndStartReplication(ctx context.Context, realTimeTopic, versionTopic string, store *Store) error
}

// MetadataStoreWriter records version state transitions into a store's
// metadata system store, for stores that have one materialized.
type MetadataStoreWriter interface {
	// WriteCurrentVersionStates records the store's version list and current
	// version.
	WriteCurrentVersionStates(ctx context.Context, clusterName, storeName string, versions []Version, currentVersion int) error
}
