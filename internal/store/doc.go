// Package store persists accounts and ingested email records.
//
// Records are keyed by (user id, message id) and never overwritten: Store
// inserts only when the pair is absent and reports whether it did. Postgres
// is the production backend; Memory serves tests and single-shot runs
// without a database.
package store
