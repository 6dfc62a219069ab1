// Package deps reports the availability of the external binaries the
// acquisition pipeline shells out to.
package deps
