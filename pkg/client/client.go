// Package client talks to the EchoTrails backend over HTTPS.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kass/echo-trails/pkg/models"
)

// DefaultBaseURL is the public EchoTrails backend
const DefaultBaseURL = "https://echo-trails-backend.vercel.app"

const maxErrorBody = 4096

// ErrUnauthorized is returned when the backend rejects the bearer token
var ErrUnauthorized = errors.New("backend rejected credentials")

// DropSource supplies the candidate drop collection for an evaluation
type DropSource interface {
	FetchDrops(ctx context.Context) ([]models.RawDrop, error)
}

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Client handles communication with the EchoTrails backend
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Logger  log.FieldLogger
}

// NewClient creates a backend client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token string, timeout time.Duration, logger log.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if token == "" {
		logger.Warn("Backend token is empty; requests will be unauthenticated")
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

type filesResponse struct {
	AudioFiles []models.RawDrop `json:"audio_files"`
}

// FetchDrops lists the drops visible to the authenticated user
func (c *Client) FetchDrops(ctx context.Context) ([]models.RawDrop, error) {
	start := time.Now()

	resp, err := c.get(ctx, "/audio/user/files")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body filesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to decode audio files")
	}
	if body.AudioFiles == nil {
		body.AudioFiles = []models.RawDrop{}
	}

	c.Logger.WithFields(log.Fields{
		"drops":    len(body.AudioFiles),
		"duration": time.Since(start),
	}).Debug("Fetched drops")

	return body.AudioFiles, nil
}

// DownloadAudio streams the audio file of drop id into w
func (c *Client) DownloadAudio(ctx context.Context, id string, w io.Writer) (int64, error) {
	if id == "" {
		return 0, errors.New("drop id is required")
	}

	resp, err := c.get(ctx, "/audio/files/"+url.PathEscape(id)+"/download")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errors.Wrapf(err, "failed to download audio %s", id)
	}

	c.Logger.WithFields(log.Fields{"drop_id": id, "bytes": n}).Debug("Downloaded audio")
	return n, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, errors.Wrap(ErrUnauthorized, apiErr.Error())
		}
		return nil, errors.Wrapf(apiErr, "GET %s", path)
	}

	return resp, nil
}
