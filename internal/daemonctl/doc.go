// Package daemonctl starts and stops a background pulpit daemon from the CLI.
//
// The daemon records its pid under paths.log_dir; Stop signals that process
// and escalates to SIGKILL after a grace period. Readiness is judged by the
// HTTP status endpoint.
package daemonctl
