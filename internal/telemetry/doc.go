// Package telemetry installs OpenTelemetry tracer and meter providers that
// export over OTLP (gRPC or HTTP). The document service spans and the
// HTTP/MCP instruments are created from the otel globals, so they export
// once New has run with an enabled config.
package telemetry
