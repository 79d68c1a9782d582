/*
Package observability provides tools for monitoring Steward runs.

It includes Prometheus metrics for converge and audit runs and for the HTTP
API, and lifecycle hooks that feed those metrics and a structured logger.
*/
package observability
