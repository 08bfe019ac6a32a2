package meta

import (
	"context"
	"sync"
)

// MockStoreRepository is a configurable mock implementation of
// ReadWriteStoreRepository for use in tests.
type MockStoreRepository struct {
	mu sync.RWMutex

	// GetStoreFunc is called by GetStore if set.
	GetStoreFunc func(storeName string) (*Store, error)

	// UpdateStoreFunc is called by UpdateStore if set.
	UpdateStoreFunc func(ctx context.Context, store *Store) error

	// RefreshFunc is called by Refresh if set.
	RefreshFunc func(ctx context.Context) error

	// Call tracking
	GetStoreCalls    []string
	UpdateStoreCalls []*Store
	RefreshCalls     int
}

// NewMockStoreRepository creates a new mock store repository.
func NewMockStoreRepository() *MockStoreRepository {
	return &MockStoreRepository{}
}

// GetStore implements ReadWriteStoreRepository.
func (m *MockStoreRepository) GetStore(storeName string) (*Store, error) {
	m.mu.Lock()
	m.GetStoreCalls = append(m.GetStoreCalls, storeName)
	m.mu.Unlock()

	if m.GetStoreFunc != nil {
		return m.GetStoreFunc(storeName)
	}

	return nil, &StoreNotFoundError{StoreName: storeName}
}

// UpdateStore implements ReadWriteStoreRepository.
func (m *MockStoreRepository) UpdateStore(ctx context.Context, store *Store) error {
	m.mu.Lock()
	m.UpdateStoreCalls = append(m.UpdateStoreCalls, store.Clone())
	m.mu.Unlock()

	if m.UpdateStoreFunc != nil {
		return m.UpdateStoreFunc(ctx, store)
	}

	return nil
}

// Refresh implements ReadWriteStoreRepository.
func (m *MockStoreRepository) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.RefreshCalls++
	m.mu.Unlock()

	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx)
	}

	return nil
}

// Reset clears all call tracking data.
func (m *MockStoreRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetStoreCalls = nil
	m.UpdateStoreCalls = nil
	m.RefreshCalls = 0
}

// MockStoreCleaner is a configurable mock implementation of StoreCleaner for
// use in tests.
type MockStoreCleaner struct {
	mu sync.RWMutex

	// DeleteOneStoreVersionFunc is called by DeleteOneStoreVersion if set.
	DeleteOneStoreVersionFunc func(ctx context.Context, clusterName, storeName string, versionNumber int) error

	// RetireOldStoreVersionsFunc is called by RetireOldStoreVersions if set.
	RetireOldStoreVersionsFunc func(ctx context.Context, clusterName, storeName string) error

	// TopicCleanupWhenPushCompleteFunc is called by TopicCleanupWhenPushComplete if set.
	TopicCleanupWhenPushCompleteFunc func(ctx context.Context, clusterName, storeName string, versionNumber int) error

	// Call tracking
	DeleteOneStoreVersionCalls []VersionCall
	RetireOldStoreVersionCalls []StoreCall
	TopicCleanupCalls          []VersionCall
}

// VersionCall records a cleaner call scoped to one store version.
type VersionCall struct {
	ClusterName   string
	StoreName     string
	VersionNumber int
}

// StoreCall records a cleaner call scoped to one store.
type StoreCall struct {
	ClusterName string
	StoreName   string
}

// NewMockStoreCleaner creates a new mock store cleaner.
func NewMockStoreCleaner() *MockStoreCleaner {
	return &MockStoreCleaner{}
}

// DeleteOneStoreVersion implements StoreCleaner.
func (m *MockStoreCleaner) DeleteOneStoreVersion(ctx context.Context, clusterName, storeName string, versionNumber int) error {
	m.mu.Lock()
	m.DeleteOneStoreVersionCalls = append(m.DeleteOneStoreVersionCalls, VersionCall{
		ClusterName:   clusterName,
		StoreName:     storeName,
		VersionNumber: versionNumber,
	})
	m.mu.Unlock()

	if m.DeleteOneStoreVersionFunc != nil {
		return m.DeleteOneStoreVersionFunc(ctx, clusterName, storeName, versionNumber)
	}

	return nil
}

// RetireOldStoreVersions implements StoreCleaner.
func (m *MockStoreCleaner) RetireOldStoreVersions(ctx context.Context, clusterName, storeName string) error {
	m.mu.Lock()
	m.RetireOldStoreVersionCalls = append(m.RetireOldStoreVersionCalls, StoreCall{
		ClusterName: clusterName,
		StoreName:   storeName,
	})
	m.mu.Unlock()

	if m.RetireOldStoreVersionsFunc != nil {
		return m.RetireOldStoreVersionsFunc(ctx, clusterName, storeName)
	}

	return nil
}

// TopicCleanupWhenPushComplete implements StoreCleaner.
func (m *MockStoreCleaner) TopicCleanupWhenPushComplete(ctx context.Context, clusterName, storeName string, versionNumber int) error {
	m.mu.Lock()
	m.TopicCleanupCalls = append(m.TopicCleanupCalls, VersionCall{
		ClusterName:   clusterName,
		StoreName:     storeName,
		VersionNumber: versionNumber,
	})
	m.mu.Unlock()

	if m.TopicCleanupWhenPushCompleteFunc != nil {
		return m.TopicCleanupWhenPushCompleteFunc(ctx, clusterName, storeName, versionNumber)
	}

	return nil
}

// Reset clears all call tracking data.
func (m *MockStoreCleaner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteOneStoreVersionCalls = nil
	m.RetireOldStoreVersionCalls = nil
	m.TopicCleanupCalls = nil
}

// MockTopicReplicator is a configurable mock implementation of
// TopicReplicator for use in tests.
type MockTopicReplicator struct {
	mu sync.RWMutex

	// PrepareAndStartReplicationFunc is called by PrepareAndStartReplication if set.
	PrepareAndStartReplicationFunc func(ctx context.Context, realTimeTopic, versionTopic string, store *Store) error

	// Call tracking
	PrepareAndStartReplicationCalls []ReplicationCall
}

// ReplicationCall records one replication start request.
type ReplicationCall struct {
	RealTimeTopic string
	VersionTopic  string
	StoreName     string
}

// NewMockTopicReplicator creates a new mock topic replicator.
func NewMockTopicReplicator() *MockTopicReplicator {
	return &MockTopicReplicator{}
}

// PrepareAndStartReplication implements TopicReplicator.
func (m *MockTopicReplicator) PrepareAndStartReplication(ctx context.Context, realTimeTopic, versionTopic string, store *Store) error {
	m.mu.Lock()
	m.PrepareAndStartReplicationCalls = append(m.PrepareAndStartReplicationCalls, ReplicationCall{
		RealTimeTopic: realTimeTopic,
		VersionTopic:  versionTopic,
		StoreName:     store.Name,
	})
	m.mu.Unlock()

	if m.PrepareAndStartReplicationFunc != nil {
		return m.PrepareAndStartReplicationFunc(ctx, realTimeTopic, versionTopic, store)
	}

	return nil
}

// Reset clears all call tracking data.
func (m *MockTopicReplicator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PrepareAndStartReplicationCalls = nil
}

// MockMetadataStoreWriter is a configurable mock implementation of
// MetadataStoreWriter for use in tests.
type MockMetadataStoreWriter struct {
	mu sync.RWMutex

	// WriteCurrentVersionStatesFunc is called by WriteCurrentVersionStates if set.
	WriteCurrentVersionStatesFunc func(ctx context.Context, clusterName, storeName string, versions []Version, currentVersion int) error

	// Call tracking
	WriteCurrentVersionStatesCalls []VersionStatesCall
}

// VersionStatesCall records one metadata system store write.
type VersionStatesCall struct {
	ClusterName    string
	StoreName      string
	Versions       []Version
	CurrentVersion int
}

// NewMockMetadataStoreWriter creates a new mock metadata store writer.
func NewMockMetadataStoreWriter() *MockMetadataStoreWriter {
	return &MockMetadataStoreWriter{}
}

// WriteCurrentVersionStates implements MetadataStoreWriter.
func (m *MockMetadataStoreWriter) WriteCurrentVersionStates(ctx context.Context, clusterName, storeName string, versions []Version, currentVersion int) error {
	m.mu.Lock()
	m.WriteCurrentVersionStatesCalls = append(m.WriteCurrentVersionStatesCalls, VersionStatesCall{
		ClusterName:    clusterName,
		StoreName:      storeName,
		Versions:       append([]Version(nil), versions...),
		CurrentVersion: currentVersion,
	})
	m.mu.Unlock()

	if m.WriteCurrentVersionStatesFunc != nil {
		return m.WriteCurrentVersionStatesFunc(ctx, clusterName, storeName, versions, currentVersion)
	}

	return nil
}

// Reset clears all call tracking data.
func (m *MockMetadataStoreWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCurrentVersionStatesCalls = nil
}
