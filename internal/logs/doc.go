// Package logs reads the daemon log file for `pulpit logs`.
//
// Last returns the trailing lines, ReadFrom resumes from a byte offset and
// Follow polls for appended lines until its context ends. Only complete
// lines are returned.
package logs
