// Package server exposes the ingestion pipeline over HTTP.
//
// APIServer serves POST /api/gmail/process-labels together with the
// Kubernetes health probes (/healthz, /readyz, /healthz/detailed).
// MetricsServer serves Prometheus metrics on a dedicated port.
//
// The pipeline endpoint accepts
//
//	{"userId": "...", "useStandardColors": false, "accessToken": "..."}
//
// and answers 200 for any completed run, 400 for invalid input or an
// account that cannot be processed, 403 with errorType
// "insufficient_permissions" when the Gmail grant must be renewed, 409 when a
// run for the same account is already in progress and 500 otherwise.
package server
