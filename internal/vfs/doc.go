// Package vfs holds the data model shared by every file system provider:
// resource URIs, stat records, change events, operation options, the
// capability bitset and the push-based ReadStream returned by streaming
// reads.
//
// Types in this package are plain values with JSON tags matching the wire
// form used by the daemon protocol. Revive functions reconstruct and validate
// values received from a peer.
package vfs
