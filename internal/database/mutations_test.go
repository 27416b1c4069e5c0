package database

import (
	"context"
	"testing"
	"time"

	"hotelsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Enqueue(ctx, nil)
	assert.Error(t, err)

	_, err = db.Enqueue(ctx, &models.PendingMutation{Kind: "invoice", RequestType: models.RequestCreate, Payload: "{}"})
	assert.Error(t, err)

	_, err = db.Enqueue(ctx, &models.PendingMutation{Kind: models.KindWorkOrder, RequestType: models.RequestUpdateStatus, Payload: "{}"})
	assert.Error(t, err)

	_, err = db.Enqueue(ctx, &models.PendingMutation{Kind: models.KindProject, RequestType: models.RequestCreate})
	assert.Error(t, err)
}

func TestDequeueBatch_OldestFirstAndBounded(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []int64
	for _, job := range []string{"first", "second", "third"} {
		id, err := db.Enqueue(ctx, newWorkOrder(t, job, nil))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	batch, err := db.DequeueBatch(ctx, models.KindWorkOrder, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, ids[0], batch[0].ID)
	assert.Equal(t, ids[1], batch[1].ID)
	assert.Equal(t, models.KindWorkOrder, batch[0].Kind)

	// non-destructive read
	again, err := db.DequeueBatch(ctx, models.KindWorkOrder, 10)
	require.NoError(t, err)
	assert.Len(t, again, 3)

	other, err := db.DequeueBatch(ctx, models.KindProject, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMarkFailed_Monotonic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.Enqueue(ctx, newWorkOrder(t, "flaky", nil))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, db.MarkFailed(ctx, models.KindWorkOrder, id, "connection reset"))
		m, err := db.Get(ctx, models.KindWorkOrder, id)
		require.NoError(t, err)
		assert.Equal(t, i, m.RetryCount)
		require.NotNil(t, m.LastError)
		assert.Equal(t, "connection reset", *m.LastError)
		require.NotNil(t, m.LastAttemptAt)
	}

	assert.ErrorIs(t, db.MarkFailed(ctx, models.KindWorkOrder, id+100, "x"), ErrNotFound)
}

func TestMarkSucceeded_RemovesRecordThenArtifacts(t *testing.T) {
	db := setupTestDB(t)
	remover := &recordingRemover{}
	db.SetArtifactRemover(remover)
	ctx := context.Background()

	id, err := db.Enqueue(ctx, newWorkOrder(t, "with photos", []string{"/p/a.jpg", "/p/b.jpg"}))
	require.NoError(t, err)

	require.NoError(t, db.MarkSucceeded(ctx, models.KindWorkOrder, id, nil))

	_, err = db.Get(ctx, models.KindWorkOrder, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"/p/a.jpg", "/p/b.jpg"}, remover.removed)

	orphans, err := db.ListOrphans(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestMarkSucceeded_RetainedPathsGoToOrphanLedger(t *testing.T) {
	db := setupTestDB(t)
	remover := &recordingRemover{}
	db.SetArtifactRemover(remover)
	ctx := context.Background()

	id, err := db.Enqueue(ctx, newWorkOrder(t, "fallback", []string{"/p/a.jpg"}))
	require.NoError(t, err)

	require.NoError(t, db.MarkSucceeded(ctx, models.KindWorkOrder, id, []string{"/p/a.jpg"}))
	assert.Empty(t, remover.removed)

	orphans, err := db.ListOrphans(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "/p/a.jpg", orphans[0].Path)
	assert.Equal(t, id, orphans[0].MutationID)

	require.NoError(t, db.DeleteOrphan(ctx, orphans[0].ID))
	orphans, err = db.ListOrphans(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestDeletedRecordIsNeverResurrected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.Enqueue(ctx, newWorkOrder(t, "done", nil))
	require.NoError(t, err)
	require.NoError(t, db.MarkSucceeded(ctx, models.KindWorkOrder, id, nil))

	assert.ErrorIs(t, db.MarkFailed(ctx, models.KindWorkOrder, id, "late failure"), ErrNotFound)
	assert.ErrorIs(t, db.MarkSucceeded(ctx, models.KindWorkOrder, id, nil), ErrNotFound)

	next, err := db.Enqueue(ctx, newWorkOrder(t, "new", nil))
	require.NoError(t, err)
	assert.Greater(t, next, id)

	count, err := db.Count(ctx, models.KindWorkOrder)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDequeueEligible_RespectsCap(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stuck, err := db.Enqueue(ctx, newWorkOrder(t, "stuck", nil))
	require.NoError(t, err)
	fresh, err := db.Enqueue(ctx, newWorkOrder(t, "fresh", nil))
	require.NoError(t, err)

	require.NoError(t, db.MarkFailed(ctx, models.KindWorkOrder, stuck, "rejected"))
	require.NoError(t, db.MarkFailed(ctx, models.KindWorkOrder, stuck, "rejected"))

	batch, err := db.DequeueEligible(ctx, models.KindWorkOrder, 10, 2)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, fresh, batch[0].ID)

	n, err := db.CountStuck(ctx, models.KindWorkOrder, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = db.CountStuck(ctx, models.KindWorkOrder, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountsAndListAll(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Enqueue(ctx, newWorkOrder(t, "wo", nil))
	require.NoError(t, err)

	notes, err := models.NewPendingMutation(models.KindMaintenanceTask, models.RequestUpdateNotesPhotos,
		models.TaskNotesPayload{TaskID: "T-9", Notes: "filter replaced"}, nil)
	require.NoError(t, err)
	_, err = db.Enqueue(ctx, notes)
	require.NoError(t, err)

	counts, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.KindWorkOrder])
	assert.Equal(t, 0, counts[models.KindProject])
	assert.Equal(t, 1, counts[models.KindMaintenanceTask])

	all, err := db.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.KindWorkOrder, all[0].Kind)
	assert.Equal(t, models.KindMaintenanceTask, all[1].Kind)
}
