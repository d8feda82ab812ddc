// Package cmd implements the command-line interface for inboxtagger.
//
// This package provides the following commands:
//   - serve: Start the HTTP service exposing POST /api/gmail/process-labels
//   - process: Run the pipeline once for a single account and print the result
//   - migrate: Apply or inspect the Postgres schema migrations
//   - version: Display version information
//
// Configuration is read from the built-in defaults, the file given with
// --config and the environment, in that order.
package cmd
