// Package daemonrun wires the daemon process: per-run log files with a
// stable pulpit.log pointer, log retention, the pid file, and the service
// graph shared with one-shot CLI commands through Build.
package daemonrun
