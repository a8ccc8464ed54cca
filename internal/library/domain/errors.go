package domain

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrPromptNotFound  = errors.New("prompt not found")
	ErrFolderNotFound  = errors.New("folder not found")
	ErrFolderCycle     = errors.New("folder cannot be its own ancestor")
	ErrFolderDepth     = errors.New("folders nest only one level deep")
	ErrMalformedImport = errors.New("malformed import payload")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrNotSignedIn     = errors.New("no active user")
)

// Remote failures are classified so callers can tell a dead link from a
// write the store refused. Neither ever undoes a local mutation.
var (
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrRemoteRejected    = errors.New("remote store rejected the write")
)
