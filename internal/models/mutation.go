package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the entity table a pending mutation belongs to.
type Kind string

const (
	KindWorkOrder       Kind = "work_order"
	KindProject         Kind = "project"
	KindMaintenanceTask Kind = "maintenance_task"
)

// AllKinds returns every entity kind in the order a sync pass visits them.
func AllKinds() []Kind {
	return []Kind{KindWorkOrder, KindProject, KindMaintenanceTask}
}

func (k Kind) Valid() bool {
	switch k {
	case KindWorkOrder, KindProject, KindMaintenanceTask:
		return true
	default:
		return false
	}
}

// RequestType selects the remote operation a mutation replays.
type RequestType string

const (
	RequestCreate            RequestType = "create"
	RequestUpdateStatus      RequestType = "update_status"
	RequestUpdatePendingDone RequestType = "update_pending_done"
	RequestUpdateNotesPhotos RequestType = "update_notes_photos"
)

// Supports reports whether the request type is meaningful for the kind.
func (k Kind) Supports(rt RequestType) bool {
	switch k {
	case KindWorkOrder, KindProject:
		return rt == RequestCreate
	case KindMaintenanceTask:
		return rt == RequestUpdateStatus || rt == RequestUpdatePendingDone || rt == RequestUpdateNotesPhotos
	default:
		return false
	}
}

// PendingMutation is a local write that has not been confirmed by the remote service yet.
type PendingMutation struct {
	ID            int64       `json:"id"`
	Kind          Kind        `json:"kind"`
	RequestType   RequestType `json:"request_type"`
	Payload       string      `json:"payload"`
	ArtifactPaths []string    `json:"artifact_paths"`
	RetryCount    int         `json:"retry_count"`
	LastError     *string     `json:"last_error"`
	CreatedAt     time.Time   `json:"created_at"`
	LastAttemptAt *time.Time  `json:"last_attempt_at"`
}

// DecodePayload unmarshals the stored JSON payload into v.
func (m *PendingMutation) DecodePayload(v any) error {
	if m.Payload == "" {
		return fmt.Errorf("mutation %s/%d has empty payload", m.Kind, m.ID)
	}
	if err := json.Unmarshal([]byte(m.Payload), v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.RequestType, err)
	}
	return nil
}

// NewPendingMutation encodes payload and builds an unsaved mutation.
func NewPendingMutation(kind Kind, rt RequestType, payload any, artifacts []string) (*PendingMutation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, p := range artifacts {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return &PendingMutation{
		Kind:          kind,
		RequestType:   rt,
		Payload:       string(raw),
		ArtifactPaths: paths,
	}, nil
}

// OrphanedArtifact is a photo left on disk after its mutation was delivered without it.
type OrphanedArtifact struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Kind       Kind      `json:"kind"`
	MutationID int64     `json:"mutation_id"`
	CreatedAt  time.Time `json:"created_at"`
}
