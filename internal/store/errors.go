package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNoUser means the local user row has not been created yet; the
	// caller should generate a mnemonic and call CreateUser.
	ErrNoUser = errors.New("local user not initialized")
)
