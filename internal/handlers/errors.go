package handlers

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an attempt did not succeed.
type ErrorKind string

const (
	Unreachable       ErrorKind = "unreachable"
	TransportFailure  ErrorKind = "transport_failure"
	RemoteRejected    ErrorKind = "remote_rejected"
	MalformedResponse ErrorKind = "malformed_response"
	ArtifactMissing   ErrorKind = "artifact_missing"
	// InvalidMutation covers records that cannot be turned into a remote call at all.
	InvalidMutation ErrorKind = "invalid_mutation"
)

type SyncError struct {
	Kind ErrorKind
	Err  error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is matches another *SyncError by kind, so errors.Is(err, &SyncError{Kind: RemoteRejected}) works.
func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	return ok && t.Kind == e.Kind
}

func newSyncError(kind ErrorKind, format string, args ...any) *SyncError {
	return &SyncError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or "" if err is not a *SyncError.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

var ErrUnreachable = &SyncError{Kind: Unreachable, Err: errors.New("remote not reachable")}
