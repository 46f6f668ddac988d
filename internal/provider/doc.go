// Package provider implements file system providers over the vfs model.
//
// IPCProvider forwards every operation over a Channel to a provider living in
// another process. It owns one watch session per instance: a session id and a
// single "filechange" event stream on which the peer multiplexes the changes
// of every watch this instance requested.
//
// DiskProvider implements the same operations on the local disk. The daemon
// serves it over the wire, and it is usable on its own.
package provider
