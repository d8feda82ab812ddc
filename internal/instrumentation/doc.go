// Package instrumentation provides OpenTelemetry instrumentation for the
// inboxtagger service.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Gmail API calls by operation and status
//   - google_api_operation_duration_seconds: Histogram of Gmail API call durations
//
// OAuth Metrics:
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//   - oauth_credential_selections_total: Counter of client credential selections by generation
//
// Pipeline Metrics:
//   - pipeline_runs_total: Counter of processing runs by outcome
//   - pipeline_run_duration_seconds: Histogram of processing run durations
//   - pipeline_messages_total: Counter of handled messages by outcome
//   - classifications_total: Counter of assigned categories
//   - llm_requests_total: Counter of language model requests by model and status
//   - llm_request_duration_seconds: Histogram of language model request durations
//
// # Tracing
//
// A processing run is one pipeline.run span. Gmail API calls
// (google.gmail.<operation>) and completions (llm.classify) are its children,
// and each labeled message adds a message.labeled event to it.
//
// # Audit
//
// Every label creation and label application is written to the audit log
// through AuditLogger. Sender addresses are reduced to their domain unless
// AUDIT_LOGGING_INCLUDE_PII is set.
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: inboxtagger)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordPipelineRun(ctx, instrumentation.RunProcessed, userID, time.Since(start))
package instrumentation
