// Package cache stores fetched content between requests.
//
// Two layers use it. The content client keeps decoded proxy responses in a
// Store, keyed by request and tagged for revalidation; fresh entries are
// served without a call and expired entries are kept as stale data until
// the Sweeper removes them. Optionally, the upstream fetcher installs
// Transport so identical GET requests within a short TTL never reach the
// origin.
//
// Backends:
//
//	memory  in-process, bounded, least recently written evicted first
//	sqlite  database/sql with modernc.org/sqlite ("sqlite") or mattn/go-sqlite3 ("sqlite3")
//	bolt    single-file go.etcd.io/bbolt with a tag index bucket
//
// Capacity eviction in the persistent backends removes the oldest StoredAt.
package cache
