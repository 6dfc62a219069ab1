// Package feeds polls channel Atom feeds and enqueues newly published
// videos as pending.
package feeds
