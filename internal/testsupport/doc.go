// Package testsupport holds helpers shared by package tests: isolated
// configs under t.TempDir, an opened store with cleanup, stub executables on
// PATH and a scripted command runner for external tools.
package testsupport
