package common

import "github.com/oklog/ulid/v2"

// NewULID returns a lexicographically sortable identifier. Session and
// thread ids use ULIDs so "most recent" ordering survives a plain string
// sort.
func NewULID() string {
	return ulid.Make().String()
}
