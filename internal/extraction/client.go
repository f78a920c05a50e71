// Package extraction calls the worker that extracts company data from a
// website.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/api/idtoken"

	"github.com/octobees/dealflow-crm/internal/dto"
)

const extractPath = "/extract"

// ErrWorker wraps errors reported by the worker itself.
var ErrWorker = errors.New("extraction worker error")

// Extractor returns enriched data for a website.
type Extractor interface {
	Extract(ctx context.Context, website, requestID string) (dto.EnrichedData, error)
}

// Client posts extraction requests to the worker.
type Client struct {
	client  *http.Client
	baseURL string
}

var _ Extractor = (*Client)(nil)

// NewClient builds a worker client. When client is nil an ID token client is
// used, falling back to a plain client with a timeout.
func NewClient(client *http.Client, workerBaseURL string) (*Client, error) {
	workerBaseURL = strings.TrimRight(strings.TrimSpace(workerBaseURL), "/")
	if workerBaseURL == "" {
		return nil, eris.New("extraction: worker base url must not be empty")
	}
	if client == nil {
		idc, err := idtoken.NewClient(context.Background(), workerBaseURL)
		if err != nil {
			client = &http.Client{Timeout: 60 * time.Second}
		} else {
			client = idc
		}
	}
	return &Client{client: client, baseURL: workerBaseURL}, nil
}

// Extract asks the worker to extract company data from website.
func (c *Client) Extract(ctx context.Context, website, requestID string) (dto.EnrichedData, error) {
	body, err := json.Marshal(map[string]string{"sitio_web": website})
	if err != nil {
		return dto.EnrichedData{}, eris.Wrap(err, "extraction: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+extractPath, bytes.NewReader(body))
	if err != nil {
		return dto.EnrichedData{}, eris.Wrap(err, "extraction: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return dto.EnrichedData{}, eris.Wrap(err, "extraction: worker request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return dto.EnrichedData{}, eris.Wrapf(ErrWorker, "extraction: %s", workerErrorMessage(resp.Body))
	}

	var workerResp struct {
		Data  *dto.EnrichedData `json:"data"`
		Error string            `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&workerResp); err != nil && err != io.EOF {
		return dto.EnrichedData{}, eris.Wrap(err, "extraction: decode worker response")
	}
	if workerResp.Error != "" {
		return dto.EnrichedData{}, eris.Wrapf(ErrWorker, "extraction: %s", workerResp.Error)
	}
	if workerResp.Data == nil {
		return dto.EnrichedData{}, eris.Wrap(ErrWorker, "extraction: empty worker response")
	}

	data := *workerResp.Data
	if data.Website == nil || strings.TrimSpace(*data.Website) == "" {
		data.Website = &website
	}
	if data.Source == "" {
		data.Source = "web"
	}
	return data, nil
}

func workerErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return "worker returned an error"
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
