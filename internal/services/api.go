// Shared JSON-over-HTTP plumbing for the service clients
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/plsync/internal/shared"
)

// apiClient performs JSON GET requests and maps HTTP status codes onto shared sentinel errors.
type apiClient struct {
	name       string
	httpClient *http.Client
	headers    map[string]string
}

func newAPIClient(name string, client *http.Client) *apiClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &apiClient{name: name, httpClient: client, headers: map[string]string{}}
}

// APIError is a non-2xx response from a service API.
type APIError struct {
	Service    string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s API error: status %d", e.Service, e.StatusCode)
}

// Unwrap maps the status code onto a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return shared.ErrAuthFailed
	case e.StatusCode == http.StatusNotFound:
		return shared.ErrPlaylistNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case e.StatusCode >= 500:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// getJSON fetches url and decodes the JSON body into result.
func (a *apiClient) getJSON(ctx context.Context, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Service: a.name, StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var detail struct {
			Detail string `json:"detail"`
			Error  struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &detail) == nil {
			apiErr.Detail = detail.Detail
			if apiErr.Detail == "" {
				apiErr.Detail = detail.Error.Message
			}
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", a.name, err)
		}
	}
	return nil
}
