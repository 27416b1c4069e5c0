// Package remote talks to the hotel maintenance HTTP API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hotelsync/internal/config"
	"hotelsync/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

// Client is the set of remote operations the sync handlers depend on.
type Client interface {
	SubmitCreate(ctx context.Context, kind models.Kind, fields map[string]string, attachments []string) (Response, error)
	UpdateStatus(ctx context.Context, req StatusUpdate) (Response, error)
	UpdateDoneWithPhoto(ctx context.Context, req DoneUpdate) (Response, error)
	UpdateNotesAndPhotos(ctx context.Context, taskID, notes string, photos []string) (Response, error)
}

type StatusUpdate struct {
	TaskID      string
	Status      string
	Actor       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type DoneUpdate struct {
	TaskID      string
	Actor       string
	CompletedAt *time.Time
	TimeSpent   time.Duration
	// Photo is optional; an empty path completes the task without a picture.
	Photo string
}

// HTTPClient implements Client over the remote's REST endpoints.
type HTTPClient struct {
	baseURL          *url.URL
	healthPath       string
	httpClient       *http.Client
	limiter          *rate.Limiter
	plainTimeout     time.Duration
	multipartTimeout time.Duration
	logger           *zerolog.Logger
}

func NewHTTPClient(cfg config.RemoteConfig, logger *zerolog.Logger) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote base_url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote base_url %q", cfg.BaseURL)
	}

	httpClient := &http.Client{}
	if cfg.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(context.Background(), src)
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &HTTPClient{
		baseURL:          base,
		healthPath:       cfg.HealthPath,
		httpClient:       httpClient,
		limiter:          rate.NewLimiter(limit, burst),
		plainTimeout:     seconds(cfg.PlainTimeout, models.DefaultPlainTimeoutSeconds),
		multipartTimeout: seconds(cfg.MultipartTimeout, models.DefaultMultipartTimeoutSeconds),
		logger:           logger,
	}, nil
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

func (c *HTTPClient) SubmitCreate(ctx context.Context, kind models.Kind, fields map[string]string, attachments []string) (Response, error) {
	path, err := createPath(kind)
	if err != nil {
		return Response{}, err
	}
	if len(attachments) == 0 {
		return c.postForm(ctx, path, fields)
	}
	files := make([]filePart, 0, len(attachments))
	for i, a := range attachments {
		files = append(files, filePart{field: fmt.Sprintf("photo%d", i+1), path: a})
	}
	return c.postMultipart(ctx, path, fields, files)
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, req StatusUpdate) (Response, error) {
	if req.TaskID == "" {
		return Response{}, errors.New("task id is required")
	}
	fields := map[string]string{
		"status": req.Status,
		"actor":  req.Actor,
	}
	if req.StartedAt != nil {
		fields["started_at"] = req.StartedAt.UTC().Format(time.RFC3339)
	}
	if req.CompletedAt != nil {
		fields["completed_at"] = req.CompletedAt.UTC().Format(time.RFC3339)
	}
	return c.postForm(ctx, taskPath(req.TaskID, "status"), fields)
}

func (c *HTTPClient) UpdateDoneWithPhoto(ctx context.Context, req DoneUpdate) (Response, error) {
	if req.TaskID == "" {
		return Response{}, errors.New("task id is required")
	}
	fields := map[string]string{
		"actor":              req.Actor,
		"time_spent_seconds": strconv.FormatInt(int64(req.TimeSpent/time.Second), 10),
	}
	if req.CompletedAt != nil {
		fields["completed_at"] = req.CompletedAt.UTC().Format(time.RFC3339)
	}
	var files []filePart
	if req.Photo != "" {
		files = append(files, filePart{field: "completion_photo", path: req.Photo})
	}
	return c.postMultipart(ctx, taskPath(req.TaskID, "complete"), fields, files)
}

// UpdateNotesAndPhotos posts to the notes endpoint, which never carries a status field.
func (c *HTTPClient) UpdateNotesAndPhotos(ctx context.Context, taskID, notes string, photos []string) (Response, error) {
	if taskID == "" {
		return Response{}, errors.New("task id is required")
	}
	if len(photos) > models.MaxNotesPhotos {
		return Response{}, fmt.Errorf("at most %d photos per notes update, got %d", models.MaxNotesPhotos, len(photos))
	}
	files := make([]filePart, 0, len(photos))
	for i, p := range photos {
		files = append(files, filePart{field: fmt.Sprintf("photo%d", i+1), path: p})
	}
	return c.postMultipart(ctx, taskPath(taskID, "notes"), map[string]string{"notes": notes}, files)
}

// Ping issues a HEAD against the health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint(c.healthPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

func createPath(kind models.Kind) (string, error) {
	switch kind {
	case models.KindWorkOrder:
		return "/api/work-orders", nil
	case models.KindProject:
		return "/api/projects", nil
	default:
		return "", fmt.Errorf("kind %s has no create endpoint", kind)
	}
}

func taskPath(taskID, action string) string {
	return "/api/tasks/" + url.PathEscape(taskID) + "/" + action
}

func (c *HTTPClient) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *HTTPClient) postForm(ctx context.Context, path string, fields map[string]string) (Response, error) {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	ctx, cancel := context.WithTimeout(ctx, c.plainTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

type filePart struct {
	field string
	path  string
}

func (c *HTTPClient) postMultipart(ctx context.Context, path string, fields map[string]string, files []filePart) (Response, error) {
	// open everything up front so a missing photo fails before any bytes are sent
	opened := make([]*os.File, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fp := range files {
		f, err := os.Open(fp.path)
		if err != nil {
			return Response{}, fmt.Errorf("open attachment: %w", err)
		}
		opened = append(opened, f)
	}

	ctx, cancel := context.WithTimeout(ctx, c.multipartTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, fields, files, opened))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), pr)
	if err != nil {
		pr.CloseWithError(err)
		return Response{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	// unblock the writer if the request never consumed the body
	pr.CloseWithError(io.ErrClosedPipe)
	return resp, err
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, files []filePart, opened []*os.File) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	for i, fp := range files {
		part, err := mw.CreateFormFile(fp.field, filepath.Base(fp.path))
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, opened[i]); err != nil {
			return err
		}
	}
	return mw.Close()
}

func (c *HTTPClient) do(req *http.Request) (Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json, text/plain")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	out := Normalize(resp.StatusCode, body)
	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("verdict", out.Verdict.String()).
		Dur("duration", time.Since(start)).
		Msg("remote call")
	return out, nil
}
