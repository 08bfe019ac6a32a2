package meta

import "strings"

// metadataSystemStorePrefix marks stores that hold another store's metadata
// records rather than user data.
const metadataSystemStorePrefix = "system_store_metadata_"

// MetadataSystemStoreName returns the name of the metadata system store
// belonging to the given user store.
func MetadataSystemStoreName(storeName string) string {
	return metadataSystemStorePrefix + storeName
}

// IsMetadataSystemStore reports whether the store is a metadata system store.
// Pushes into such stores skip version-status bookkeeping and error-path
// version deletion; their versions are managed by the system store lifecycle.
func IsMetadataSystemStore(storeName string) bool {
	return strings.HasPrefix(storeName, metadataSystemStorePrefix)
}

// UserStoreName returns the user store a metadata system store belongs to.
// Non-system store names are returned unchanged.
func UserStoreName(storeName string) string {
	return strings.TrimPrefix(storeName, metadataSystemStorePrefix)
}
