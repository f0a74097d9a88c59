// Package idgen produces the identifiers that tag each run in its log file.
//
// The runner takes a Generator at construction, so a scheduler that already
// owns an ID can pass it through with Fixed instead of getting a fresh one.
package idgen

import (
	"github.com/google/uuid"

	"github.com/hazyhaar/keepbackup/failure"
)

// Generator produces one run ID per call.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs. They sort by
// creation time, so run IDs within one logs/ directory sort by start.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Fixed returns a Generator that always yields id.
func Fixed(id string) Generator {
	return func() string { return id }
}

// Default is the generator used when none is configured.
var Default Generator = UUIDv7()

// Parse validates an externally supplied run ID and returns its canonical
// lowercase form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", failure.Validation("invalid run id %q: %v", s, err)
	}
	return u.String(), nil
}
