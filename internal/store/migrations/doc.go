// Package migrations registers the Postgres schema migrations with goose.
// Migration 002 adds the optional category columns; stores written against
// a schema at version 1 fall back to inserting without them.
package migrations
