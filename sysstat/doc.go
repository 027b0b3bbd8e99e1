// Package sysstat samples OS-level CPU and memory usage for the system
// gauges exported alongside application metrics.
//
// Sampling can take tens of milliseconds on some platforms, so it never runs
// on the request path: a Poller takes samples on a timer and serves the most
// recent one from memory. When the OS query fails the poller keeps the last
// known good snapshot and marks it stale instead of dropping the value, so
// metrics consumers never see a missing series.
package sysstat
