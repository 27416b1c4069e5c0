package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hotelsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type staticSource struct {
	rows []models.PendingMutation
	err  error
}

func (s staticSource) ListAll(context.Context) ([]models.PendingMutation, error) {
	return s.rows, s.err
}

func TestExport(t *testing.T) {
	lastErr := "remote_rejected: unknown task"
	created := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	src := staticSource{rows: []models.PendingMutation{
		{ID: 1, Kind: models.KindWorkOrder, RequestType: models.RequestCreate, CreatedAt: created, ArtifactPaths: []string{"a.jpg"}},
		{ID: 4, Kind: models.KindMaintenanceTask, RequestType: models.RequestUpdateStatus, RetryCount: 3, LastError: &lastErr, CreatedAt: created},
	}}

	dir := filepath.Join(t.TempDir(), "exports")
	e := NewExporter(src, dir, nil)
	e.now = func() time.Time { return time.Date(2026, 4, 3, 8, 30, 0, 0, time.UTC) }

	path, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pending_20260403_083000.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetPending)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, pendingHeaders, rows[0])
	assert.Equal(t, "work_order", rows[1][0])
	assert.Equal(t, "3", rows[2][3])
	assert.Equal(t, lastErr, rows[2][4])

	total, err := f.GetCellValue(sheetSummary, "B5")
	require.NoError(t, err)
	assert.Equal(t, "2", total)

	assert.NotContains(t, f.GetSheetList(), "Sheet1")
}

func TestExport_SourceError(t *testing.T) {
	e := NewExporter(staticSource{err: errors.New("db locked")}, t.TempDir(), nil)
	_, err := e.Export(context.Background())
	assert.Error(t, err)
}
