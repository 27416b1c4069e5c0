package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hotelsync/internal/config"
	"hotelsync/internal/database"
	"hotelsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "queue.db")
	content := fmt.Sprintf(`
database:
  path: %q
artifacts:
  dir: %q
remote:
  base_url: "http://127.0.0.1:1"
logging:
  level: error
  output: stderr
exports:
  path: %q
`, dbPath, filepath.Join(dir, "photos"), filepath.Join(dir, "exports"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, dbPath string) {
	t.Helper()
	db, err := database.NewDB(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	m, err := models.NewPendingMutation(models.KindWorkOrder, models.RequestCreate, models.WorkOrderPayload{
		PropertyID: "p-1",
		Department: "engineering",
		Job:        "leaking tap",
	}, nil)
	require.NoError(t, err)
	_, err = db.Enqueue(context.Background(), m)
	require.NoError(t, err)
}

func TestStatusCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seed(t, dbPath)

	out, err := execute(t, "--config", cfgPath, "status", "--json")
	require.NoError(t, err)

	var got struct {
		Total  int            `json:"total"`
		ByKind map[string]int `json:"by_kind"`
		Stuck  int            `json:"stuck"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, 1, got.ByKind[string(models.KindWorkOrder)])
	assert.Zero(t, got.Stuck)

	out, err = execute(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "total")
}

func TestExportCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seed(t, dbPath)

	out, err := execute(t, "--config", cfgPath, "export")
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.True(t, strings.HasSuffix(path, ".xlsx"))
	assert.FileExists(t, path)
}

func TestSweepCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "sweep", "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 orphaned artifacts")
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "status")
	assert.Error(t, err)
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := retryPolicy(config.SyncConfig{BackoffFloor: "10s", BackoffMax: "1m", BackoffFactor: 2, MaxAttempts: 4})
	assert.Equal(t, 4, p.MaxRetries)
	assert.Equal(t, 10*time.Second, p.InitialDelay)
	assert.Equal(t, time.Minute, p.MaxDelay)

	p = retryPolicy(config.SyncConfig{})
	assert.Equal(t, time.Duration(models.DefaultBackoffFloorSeconds)*time.Second, p.InitialDelay)
	assert.Equal(t, 5*time.Hour, p.MaxDelay)
}
