package domain

// KeyPrefix namespaces every key bullion writes to the cache store.
const KeyPrefix = "bullion:"
