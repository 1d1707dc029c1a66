package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"simrunner/internal/config"
)

// ConfigSnapshotName is the file name of the configuration snapshot uploaded
// at job creation.
const ConfigSnapshotName = "config.yaml"

// tokenHeader authenticates requests to the remote store.
const tokenHeader = "Girder-Token"

// Client is the HTTP implementation of Store.
type Client struct {
	base     string
	token    string
	folderID string
	client   *http.Client
}

// ClientConfig configures a Client.
type ClientConfig struct {
	APIBase  string        // Base API URL, e.g. config.DefaultAPIBase
	Token    string        // Authentication token, sent on every request
	FolderID string        // Parent folder for new job records
	Timeout  time.Duration // Per-request timeout (0 means no timeout)
}

// NewClient creates a remote store client with standard transport settings.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		base:     strings.TrimRight(cfg.APIBase, "/"),
		token:    cfg.Token,
		folderID: cfg.FolderID,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// document is the subset of a remote record the client reads back.
type document struct {
	ID string `json:"_id"`
}

// Initialize creates the job record and uploads the configuration snapshot.
func (c *Client) Initialize(ctx context.Context, name string, targetTime float64, cfg *config.SimulationConfig) (*JobDescriptor, error) {
	meta, err := json.Marshal(map[string]float64{"targetTime": targetTime})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job metadata: %w", err)
	}

	query := url.Values{}
	query.Set("name", name)
	query.Set("folderId", c.folderID)
	query.Set("config", string(meta))

	var doc document
	if err := c.do(ctx, http.MethodPost, "/nli/simulation", query, &doc); err != nil {
		return nil, err
	}

	if err := c.uploadFile(ctx, doc.ID, ConfigSnapshotName, bytes.NewReader(cfg.Raw), int64(len(cfg.Raw))); err != nil {
		return nil, fmt.Errorf("failed to upload config snapshot: %w", err)
	}

	return &JobDescriptor{
		JobID:      doc.ID,
		TargetTime: targetTime,
		Status:     StatusPending,
	}, nil
}

// SetStatus updates the job's status and progress counters.
func (c *Client) SetStatus(ctx context.Context, jobID string, status JobStatus, current, total float64) error {
	query := url.Values{}
	query.Set("status", strconv.Itoa(int(status)))
	query.Set("progressCurrent", formatFloat(current))
	query.Set("progressTotal", formatFloat(total))

	return c.do(ctx, http.MethodPut, "/job/"+jobID, query, nil)
}

// UploadStep creates a folder named stepName under the job and uploads every
// regular file in dir into it.
func (c *Client) UploadStep(ctx context.Context, jobID, stepName, dir string) (FolderID, error) {
	slog.Info("Uploading step", "jobId", jobID, "step", stepName)

	query := url.Values{}
	query.Set("parentId", jobID)
	query.Set("name", stepName)

	var folder document
	if err := c.do(ctx, http.MethodPost, "/folder", query, &folder); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read step directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := c.uploadFileFromDisk(ctx, folder.ID, filepath.Join(dir, entry.Name())); err != nil {
			return "", err
		}
	}

	return FolderID(folder.ID), nil
}

// Finalize marks the job computation-complete.
func (c *Client) Finalize(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/nli/simulation/"+jobID+"/complete", nil, nil)
}

func (c *Client) uploadFileFromDisk(ctx context.Context, folderID, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return c.uploadFile(ctx, folderID, filepath.Base(path), file, info.Size())
}

func (c *Client) uploadFile(ctx context.Context, folderID, name string, body io.Reader, size int64) error {
	query := url.Values{}
	query.Set("folderId", folderID)
	query.Set("name", name)
	query.Set("size", strconv.FormatInt(size, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/file", query), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// do performs a bodyless API call and decodes a JSON response into out when
// out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) url(path string, query url.Values) string {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// APIError is a non-2xx response from the remote store.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote store returned status %d: %s", e.StatusCode, e.Message)
}
