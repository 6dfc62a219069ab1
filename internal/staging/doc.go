// Package staging reclaims scratch directories left in paths.work_dir by
// acquisition runs that never reached their deferred cleanup.
package staging
