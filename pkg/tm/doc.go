// Package tm implements the Translation Memory engine: TM entities, a
// persistent vector index, the 5-tier cascade lookup, and the
// pre-translation driver that applies the cascade across a file's
// pending rows. It is backend-agnostic the same way pkg/repository is —
// Engine is built over a Store interface satisfied by both
// *manager.Manager (authoritative) and *repository.LocalBackend
// (offline sandbox), so the cascade behaves identically against either.
package tm
