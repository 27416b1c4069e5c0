package handlers

import (
	"context"
	"errors"
	"fmt"

	"hotelsync/internal/models"
	"hotelsync/internal/remote"

	"github.com/rs/zerolog"
)

// CreateHandler submits new work orders and projects.
type CreateHandler struct {
	kind      models.Kind
	client    remote.Client
	artifacts ArtifactChecker
	logger    *zerolog.Logger
}

func NewCreateHandler(kind models.Kind, client remote.Client, artifacts ArtifactChecker, logger *zerolog.Logger) *CreateHandler {
	return &CreateHandler{kind: kind, client: client, artifacts: artifacts, logger: logger}
}

// Attempt tries a multipart submission when photos are attached and, if that fails for any
// reason, falls back once to a plain submission within the same attempt. Photos skipped by
// the fallback are reported as Retained.
func (h *CreateHandler) Attempt(ctx context.Context, m *models.PendingMutation) Outcome {
	fields, err := h.fields(m)
	if err != nil {
		return failure(err)
	}

	present, missing, multipartErr := h.multipart(ctx, m, fields)
	if len(missing) > 0 {
		h.logger.Warn().
			Int64("mutation_id", m.ID).
			Strs("missing", missing).
			Msg("attachments missing, submitting without them")
	}
	if len(present) > 0 {
		if multipartErr == nil {
			return Outcome{Missing: missing}
		}
		h.logger.Warn().
			Err(multipartErr).
			Int64("mutation_id", m.ID).
			Msg("multipart submit failed, falling back to plain submit")
	}

	resp, err := h.client.SubmitCreate(ctx, h.kind, fields, nil)
	if plainErr := classify(resp, err); plainErr != nil {
		if multipartErr != nil {
			return failure(&SyncError{
				Kind: KindOf(plainErr),
				Err:  fmt.Errorf("multipart: %v; fallback: %w", multipartErr, plainErr),
			})
		}
		return failure(plainErr)
	}

	out := Outcome{Missing: missing}
	if multipartErr != nil {
		out.Fallback = true
		out.Retained = present
	}
	return out
}

// multipart submits with the photos that exist. A photo that vanishes between the check and
// the upload is dropped and the upload repeated once with the rest.
func (h *CreateHandler) multipart(ctx context.Context, m *models.PendingMutation, fields map[string]string) (present, missing []string, err error) {
	present, missing = h.artifacts.Partition(m.ArtifactPaths)
	if len(present) == 0 {
		return nil, missing, nil
	}
	resp, err := h.client.SubmitCreate(ctx, h.kind, fields, present)
	if err = classify(resp, err); !errors.Is(err, &SyncError{Kind: ArtifactMissing}) {
		return present, missing, err
	}

	present, missing = h.artifacts.Partition(m.ArtifactPaths)
	if len(present) == 0 {
		return nil, missing, nil
	}
	resp, err = h.client.SubmitCreate(ctx, h.kind, fields, present)
	return present, missing, classify(resp, err)
}

func (h *CreateHandler) fields(m *models.PendingMutation) (map[string]string, error) {
	switch h.kind {
	case models.KindWorkOrder:
		var p models.WorkOrderPayload
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return p.Fields(), nil
	case models.KindProject:
		var p models.ProjectPayload
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return p.Fields(), nil
	default:
		return nil, newSyncError(InvalidMutation, "kind %s cannot be created", h.kind)
	}
}
