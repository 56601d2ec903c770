// Package registry is the capability store at the heart of the skill
// system. It is structured into small files by concern:
//
//   - registry.go: capability contracts, mangled keys, the generic Store.
//   - actionset.go: weak (generation-checked) bindings used by dispatch.
//   - local.go: per-skill overlay supporting transactional rollback.
//   - errors.go: error types and helpers (IsDuplicateKey, IsNotFound).
//
// Keys are always mangled ("__{skill}__{name}") so two skills can never
// collide. The Store owns its objects for the process lifetime of the
// skill system; everything else holds handles that observe removal.
package registry
