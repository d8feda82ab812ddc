// Package lock serializes pipeline runs per account.
//
// Runs for one account must not interleave. Record storage is idempotent, but
// two overlapping runs would classify the same messages twice. The Redis
// locker uses a single key per account with a TTL; Noop is used when Redis is
// not configured.
package lock
