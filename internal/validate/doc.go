// Package validate wraps a shared go-playground validator with English
// translations. Field names in messages come from json or yaml tags so
// errors read like the payload or file being checked.
package validate
