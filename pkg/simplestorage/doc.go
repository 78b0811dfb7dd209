// Package simplestorage provides a backend-agnostic object storage library.
//
// Callers address blobs by a logical key. A Service joins the key with a
// configured context path, hands the resulting full path to an Adapter and
// classifies every failure as one of ErrConfiguration, ErrNotFound,
// ErrAccessDenied or ErrUnexpected, so callers never see provider error
// types. Adapters for memory, filesystem, S3, Azure Blob, NATS JetStream and
// PostgreSQL live under storage/.
//
// Handles
//
// Service.Get returns an *Object whose attributes are fetched eagerly and
// whose content is loaded on first access. Concurrent first accesses share a
// single backend read. Content is held in a reclaimable cell and re-fetched
// transparently after reclamation. A failed fetch makes the handle invalid:
// every later content access returns the same stored cause. Object.Open
// always opens a new backend stream.
//
// Removing a missing key succeeds, while Get and GetMeta on a missing key
// fail with ErrNotFound.
package simplestorage
