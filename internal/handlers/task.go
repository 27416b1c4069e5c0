package handlers

import (
	"context"
	"errors"

	"hotelsync/internal/models"
	"hotelsync/internal/remote"

	"github.com/rs/zerolog"
)

// TaskHandler replays maintenance task updates. Status changes and notes/photo updates
// go through separate remote operations.
type TaskHandler struct {
	client    remote.Client
	artifacts ArtifactChecker
	logger    *zerolog.Logger
}

func NewTaskHandler(client remote.Client, artifacts ArtifactChecker, logger *zerolog.Logger) *TaskHandler {
	return &TaskHandler{client: client, artifacts: artifacts, logger: logger}
}

func (h *TaskHandler) Attempt(ctx context.Context, m *models.PendingMutation) Outcome {
	switch m.RequestType {
	case models.RequestUpdateStatus:
		return h.updateStatus(ctx, m)
	case models.RequestUpdatePendingDone:
		return h.withArtifacts(ctx, m, h.updatePendingDone)
	case models.RequestUpdateNotesPhotos:
		return h.withArtifacts(ctx, m, h.updateNotesPhotos)
	default:
		return failure(newSyncError(InvalidMutation, "unsupported request type %q", m.RequestType))
	}
}

func (h *TaskHandler) updateStatus(ctx context.Context, m *models.PendingMutation) Outcome {
	var p models.TaskStatusPayload
	if err := decode(m, &p); err != nil {
		return failure(err)
	}
	resp, err := h.client.UpdateStatus(ctx, remote.StatusUpdate{
		TaskID:      p.TaskID,
		Status:      p.Status,
		Actor:       p.Actor,
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
	})
	if err := classify(resp, err); err != nil {
		return failure(err)
	}
	return Outcome{Retained: m.ArtifactPaths}
}

type artifactCall func(ctx context.Context, m *models.PendingMutation, present []string) Outcome

// withArtifacts resolves which photos still exist and, if one disappears between the check
// and the upload, repeats the call once without it.
func (h *TaskHandler) withArtifacts(ctx context.Context, m *models.PendingMutation, call artifactCall) Outcome {
	present, missing := h.artifacts.Partition(m.ArtifactPaths)
	out := call(ctx, m, present)
	if errors.Is(out.Err, &SyncError{Kind: ArtifactMissing}) {
		present, missing = h.artifacts.Partition(m.ArtifactPaths)
		out = call(ctx, m, present)
	}
	if len(missing) > 0 {
		h.logger.Warn().
			Int64("mutation_id", m.ID).
			Strs("missing", missing).
			Msg("attachments missing, submitted without them")
	}
	out.Missing = missing
	return out
}

func (h *TaskHandler) updatePendingDone(ctx context.Context, m *models.PendingMutation, present []string) Outcome {
	var p models.TaskPendingDonePayload
	if err := decode(m, &p); err != nil {
		return failure(err)
	}

	if p.Status != models.TaskStatusDone {
		resp, err := h.client.UpdateStatus(ctx, remote.StatusUpdate{
			TaskID:      p.TaskID,
			Status:      p.Status,
			Actor:       p.Actor,
			CompletedAt: p.CompletedAt,
		})
		if err := classify(resp, err); err != nil {
			return failure(err)
		}
		// photos only travel with a done transition
		return Outcome{Retained: present}
	}

	var photo string
	var retained []string
	if len(present) > 0 {
		photo, retained = present[0], present[1:]
	}
	resp, err := h.client.UpdateDoneWithPhoto(ctx, remote.DoneUpdate{
		TaskID:      p.TaskID,
		Actor:       p.Actor,
		CompletedAt: p.CompletedAt,
		TimeSpent:   p.TimeSpent,
		Photo:       photo,
	})
	if err := classify(resp, err); err != nil {
		return failure(err)
	}
	return Outcome{Retained: retained}
}

func (h *TaskHandler) updateNotesPhotos(ctx context.Context, m *models.PendingMutation, present []string) Outcome {
	var p models.TaskNotesPayload
	if err := decode(m, &p); err != nil {
		return failure(err)
	}

	photos, retained := present, []string(nil)
	if len(photos) > models.MaxNotesPhotos {
		photos, retained = present[:models.MaxNotesPhotos], present[models.MaxNotesPhotos:]
	}
	resp, err := h.client.UpdateNotesAndPhotos(ctx, p.TaskID, p.Notes, photos)
	if err := classify(resp, err); err != nil {
		return failure(err)
	}
	return Outcome{Retained: retained}
}
