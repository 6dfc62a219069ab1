// Package main is the pulpitd daemon entrypoint. It loads configuration and
// hands off to daemonrun, which owns logging, locking and shutdown.
package main
