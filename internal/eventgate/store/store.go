// Package store defines the persistence contracts of the presence core:
// participant lookup, the segmented session ledger and the scan audit log.
package store

import "errors"

// Stores return these (optionally wrapped) so services can translate them
// into domain errors.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
