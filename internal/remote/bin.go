package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"campushub/statesync/internal/state"
)

// BinStore is a hosted JSON-bin style document store: GET returns the whole
// aggregate, POST replaces it. Knowledge of the URL is the only access
// control the hosted variants offer; a bearer token is an optional extra.
type BinStore struct {
	url    string
	token  string
	client *http.Client
}

func NewBinStore(storeURL, token string, timeout time.Duration) *BinStore {
	return &BinStore{
		url:    storeURL,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch pulls the document with a cache-defeating nonce appended to the
// request so intermediate caches cannot serve a stale copy.
func (b *BinStore) Fetch(ctx context.Context) (*state.AppState, error) {
	fetchURL, err := cacheBust(b.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	b.authorize(req)
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	st, err := state.Decode(body)
	if err != nil {
		// Foreign or corrupt payloads are unavailability, not data.
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return st, nil
}

// Replace overwrites the hosted document with the encoded aggregate.
func (b *BinStore) Replace(ctx context.Context, st *state.AppState) error {
	body, err := st.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (b *BinStore) authorize(req *http.Request) {
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
}

func cacheBust(storeURL string) (string, error) {
	parsed, err := url.Parse(storeURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("nocache", uuid.NewString())
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
