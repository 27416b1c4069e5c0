// Package handlers turns pending mutations into remote calls and classifies the results.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"hotelsync/internal/models"
	"hotelsync/internal/remote"

	"github.com/rs/zerolog"
)

// Outcome is the result of one attempt. A nil Err means the remote confirmed the mutation.
type Outcome struct {
	Err error
	// Retained lists artifacts that were not delivered and must survive the record's deletion.
	Retained []string
	// Missing lists artifacts that were gone by the time of the attempt.
	Missing  []string
	Fallback bool
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

func failure(err error) Outcome {
	return Outcome{Err: err}
}

type Handler interface {
	Attempt(ctx context.Context, m *models.PendingMutation) Outcome
}

// ArtifactChecker splits artifact paths into those still on disk and those that vanished.
type ArtifactChecker interface {
	Partition(paths []string) (present, missing []string)
}

// Registry routes a mutation to the handler for its kind.
type Registry struct {
	handlers map[models.Kind]Handler
}

func NewRegistry(client remote.Client, artifacts ArtifactChecker, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{handlers: map[models.Kind]Handler{
		models.KindWorkOrder:       NewCreateHandler(models.KindWorkOrder, client, artifacts, logger),
		models.KindProject:         NewCreateHandler(models.KindProject, client, artifacts, logger),
		models.KindMaintenanceTask: NewTaskHandler(client, artifacts, logger),
	}}
}

func (r *Registry) Register(kind models.Kind, h Handler) {
	r.handlers[kind] = h
}

func (r *Registry) Attempt(ctx context.Context, m *models.PendingMutation) Outcome {
	h, ok := r.handlers[m.Kind]
	if !ok {
		return failure(newSyncError(InvalidMutation, "no handler for kind %q", m.Kind))
	}
	if !m.Kind.Supports(m.RequestType) {
		return failure(newSyncError(InvalidMutation, "kind %s does not support %s", m.Kind, m.RequestType))
	}
	return h.Attempt(ctx, m)
}

// classify folds a transport error or a normalized response into a *SyncError, or nil on success.
func classify(resp remote.Response, err error) error {
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &SyncError{Kind: ArtifactMissing, Err: err}
		}
		return &SyncError{Kind: TransportFailure, Err: err}
	}
	switch resp.Verdict {
	case remote.VerdictSuccess:
		if resp.StatusCode >= 400 {
			return newSyncError(RemoteRejected, "http %d: %s", resp.StatusCode, resp.Message)
		}
		return nil
	case remote.VerdictRejected:
		return newSyncError(RemoteRejected, "http %d: %s", resp.StatusCode, resp.Message)
	default:
		return newSyncError(MalformedResponse, "http %d: %s", resp.StatusCode, resp.Message)
	}
}

func decode(m *models.PendingMutation, v any) error {
	if err := m.DecodePayload(v); err != nil {
		return &SyncError{Kind: InvalidMutation, Err: fmt.Errorf("mutation %d: %w", m.ID, err)}
	}
	return nil
}
