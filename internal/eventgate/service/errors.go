package service

import "errors"

var (
	ErrInvalidCPF          = errors.New("cpf is required")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUnknownKind         = errors.New("participant kind has no presence category")

	// Registry disagreed with the ledger.  Retrying cannot help.
	ErrStateConsistency = errors.New("presence state consistency fault")
	ErrAlreadyPresent   = errors.New("entry already present")
	ErrNotPresent       = errors.New("entry not present")

	ErrNotReady           = errors.New("presence registry not initialized")
	ErrNotifierClosed     = errors.New("notifier closed")
	ErrInvalidSessionMode = errors.New("session mode must be single or reentry")
)
