// Package export writes diagnostic workbooks of the pending mutation queue.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hotelsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	sheetPending = "Pending"
	sheetSummary = "Summary"
)

var pendingHeaders = []string{"Kind", "ID", "Request type", "Retry count", "Last error", "Created", "Last attempt", "Artifacts"}

type Source interface {
	ListAll(ctx context.Context) ([]models.PendingMutation, error)
}

type Exporter struct {
	source Source
	dir    string
	now    func() time.Time
	logger *zerolog.Logger
}

func NewExporter(source Source, dir string, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exporter{source: source, dir: dir, now: time.Now, logger: logger}
}

// Export writes every pending mutation to a new .xlsx file and returns its path.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	pending, err := e.source.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing pending mutations: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetPending)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range pendingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetPending, cell, h)
		_ = f.SetCellStyle(sheetPending, cell, cell, headerStyle)
	}

	retriedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
	})

	perKind := make(map[models.Kind]int)
	for i, m := range pending {
		row := i + 2
		perKind[m.Kind]++

		lastErr, lastAttempt := "", ""
		if m.LastError != nil {
			lastErr = *m.LastError
		}
		if m.LastAttemptAt != nil {
			lastAttempt = m.LastAttemptAt.Format(time.RFC3339)
		}
		values := []any{
			string(m.Kind), m.ID, string(m.RequestType), m.RetryCount,
			lastErr, m.CreatedAt.Format(time.RFC3339), lastAttempt, len(m.ArtifactPaths),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetPending, start, &values); err != nil {
			return "", fmt.Errorf("error writing row %d: %w", row, err)
		}
		if m.RetryCount > 0 {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			_ = f.SetCellStyle(sheetPending, start, end, retriedStyle)
		}
	}
	_ = f.SetColWidth(sheetPending, "A", "D", 18)
	_ = f.SetColWidth(sheetPending, "E", "E", 60)
	_ = f.SetColWidth(sheetPending, "F", "H", 24)

	if err := e.writeSummary(f, perKind, headerStyle); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("pending_%s.xlsx", e.now().Format("20060102_150405"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", len(pending)).Msg("Pending mutations exported")
	return filePath, nil
}

func (e *Exporter) writeSummary(f *excelize.File, perKind map[models.Kind]int, headerStyle int) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.SetCellValue(sheetSummary, "A1", "Kind")
	_ = f.SetCellValue(sheetSummary, "B1", "Pending")
	_ = f.SetCellStyle(sheetSummary, "A1", "B1", headerStyle)

	total := 0
	for i, kind := range models.AllKinds() {
		row := i + 2
		_ = f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", row), string(kind))
		_ = f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", row), perKind[kind])
		total += perKind[kind]
	}
	totalRow := len(models.AllKinds()) + 2
	_ = f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", totalRow), "Total")
	_ = f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", totalRow), total)
	_ = f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", totalRow+1), "Generated")
	_ = f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", totalRow+1), e.now().Format(time.RFC3339))
	_ = f.SetColWidth(sheetSummary, "A", "B", 22)
	return nil
}
