// Package ingest is the boundary to the external collaborators that turn
// admin uploads into structured records. Extraction and stylization are
// consumed as black boxes: both may be slow, may fail, and may legitimately
// return nothing. Record identifiers are assigned on this side of the
// boundary, never by the sync layer.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"campushub/statesync/internal/state"
)

// ErrExtractorUnavailable is returned when the collaborator cannot be
// reached or answers with a failure status. Zero extracted records is NOT
// this error; it is a normal outcome meaning "nothing recognized".
var ErrExtractorUnavailable = errors.New("extraction service unavailable")

// Extractor converts raw uploaded content into records for one category.
type Extractor interface {
	Extract(ctx context.Context, category state.Category, content []byte, mimeType string) ([]json.RawMessage, error)
}

// Stylizer transforms the campus-map image. A nil result with a nil error
// means no stylized variant was produced; callers fall back to the raw image.
type Stylizer interface {
	Stylize(ctx context.Context, image []byte) ([]byte, error)
}

// HTTPExtractor calls a hosted generative-extraction endpoint.
type HTTPExtractor struct {
	url    string
	client *http.Client
}

func NewHTTPExtractor(url string, timeout time.Duration) *HTTPExtractor {
	return &HTTPExtractor{url: url, client: &http.Client{Timeout: timeout}}
}

type extractRequest struct {
	Category string `json:"category"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"`
}

type extractResponse struct {
	Records []json.RawMessage `json:"records"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, category state.Category, content []byte, mimeType string) ([]json.RawMessage, error) {
	payload, err := json.Marshal(extractRequest{
		Category: string(category),
		MimeType: mimeType,
		Content:  base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractorUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrExtractorUnavailable, resp.StatusCode)
	}
	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractorUnavailable, err)
	}
	return out.Records, nil
}

// HTTPStylizer calls a hosted image-stylization endpoint.
type HTTPStylizer struct {
	url    string
	client *http.Client
}

func NewHTTPStylizer(url string, timeout time.Duration) *HTTPStylizer {
	return &HTTPStylizer{url: url, client: &http.Client{Timeout: timeout}}
}

type stylizeRequest struct {
	Image string `json:"image"`
}

type stylizeResponse struct {
	Image string `json:"image"`
}

// Stylize returns the transformed image, or nil when the collaborator
// produced nothing. Transport failures also resolve to nil: the raw image is
// always an acceptable fallback, so stylization never fails an ingestion.
func (s *HTTPStylizer) Stylize(ctx context.Context, image []byte) ([]byte, error) {
	payload, err := json.Marshal(stylizeRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var out stylizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil
	}
	if out.Image == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, nil
	}
	return decoded, nil
}
