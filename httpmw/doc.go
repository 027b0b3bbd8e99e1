// Package httpmw provides the request telemetry middleware that feeds the
// metrics registry.
//
// Every wrapped request increments api_requests_total, records its duration
// into api_request_duration_seconds, and counts failures in api_errors_total.
// Recording happens in a deferred block so it runs on every exit path,
// including handler panics. A panic is answered with 500 and recorded like
// any other server error instead of silently losing the observation.
package httpmw
