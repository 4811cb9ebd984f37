package genservice

// http.go is the REST implementation of Service. The service exposes one
// submit endpoint per edit kind and a single poll endpoint; all submits
// return {"requestId": "..."} and all jobs are polled at
// GET /v1/jobs/{requestId}.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/design-refine/internal/scene"
)

const (
	// defaultTimeout is the HTTP client timeout for individual calls; the
	// poll loop bounds total job time separately.
	defaultTimeout = 30 * time.Second
)

// HTTPService implements Service against the generation service REST API.
type HTTPService struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService creates a client for the generation service at baseURL.
// apiKey is typically loaded from SSM Parameter Store at Lambda cold start.
func NewHTTPService(baseURL, apiKey string) *HTTPService {
	return &HTTPService{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// --- API request/response types ---

type submitRequest struct {
	ImageURL   string        `json:"imageUrl"`
	Prompt     string        `json:"prompt,omitempty"`
	Structured *scene.Prompt `json:"structuredPrompt,omitempty"`
	Background string        `json:"background,omitempty"`
	Target     string        `json:"target,omitempty"`
	MaskURL    string        `json:"maskUrl,omitempty"`
	Seed       int64         `json:"seed,omitempty"`
	Strength   float64       `json:"strength,omitempty"`
}

type submitResponse struct {
	RequestID string  `json:"requestId"`
	Error     *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// --- Submit operations ---

// SubmitStructured submits a structured scene prompt edit job.
func (s *HTTPService) SubmitStructured(ctx context.Context, imageURL string, prompt scene.Prompt, opts SubmitOptions) (string, error) {
	log.Debug().Int("objects", len(prompt.Objects)).Msg("Submitting structured edit")
	id, err := s.submit(ctx, "/v1/edits/structured", submitRequest{
		ImageURL:   imageURL,
		Structured: &prompt,
		Seed:       opts.Seed,
		Strength:   opts.Strength,
	})
	if err != nil {
		return "", fmt.Errorf("submit structured edit: %w", err)
	}
	return id, nil
}

// SubmitText submits a plain-text edit job.
func (s *HTTPService) SubmitText(ctx context.Context, imageURL, prompt string, opts SubmitOptions) (string, error) {
	id, err := s.submit(ctx, "/v1/edits/text", submitRequest{
		ImageURL: imageURL,
		Prompt:   prompt,
		Seed:     opts.Seed,
		Strength: opts.Strength,
	})
	if err != nil {
		return "", fmt.Errorf("submit text edit: %w", err)
	}
	return id, nil
}

// RemoveBackground submits a background removal job.
func (s *HTTPService) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	id, err := s.submit(ctx, "/v1/background/remove", submitRequest{ImageURL: imageURL})
	if err != nil {
		return "", fmt.Errorf("submit background removal: %w", err)
	}
	return id, nil
}

// ReplaceBackground submits a prompt-guided background replacement job.
func (s *HTTPService) ReplaceBackground(ctx context.Context, imageURL, background string) (string, error) {
	id, err := s.submit(ctx, "/v1/background/replace", submitRequest{
		ImageURL:   imageURL,
		Background: background,
	})
	if err != nil {
		return "", fmt.Errorf("submit background replacement: %w", err)
	}
	return id, nil
}

// GenerateMask submits an object mask generation job for target.
func (s *HTTPService) GenerateMask(ctx context.Context, imageURL, target string) (string, error) {
	id, err := s.submit(ctx, "/v1/masks", submitRequest{
		ImageURL: imageURL,
		Target:   target,
	})
	if err != nil {
		return "", fmt.Errorf("submit mask generation for %q: %w", target, err)
	}
	return id, nil
}

// FillMasked submits a mask-guided fill job.
func (s *HTTPService) FillMasked(ctx context.Context, imageURL, maskURL, prompt string) (string, error) {
	id, err := s.submit(ctx, "/v1/fills", submitRequest{
		ImageURL: imageURL,
		MaskURL:  maskURL,
		Prompt:   prompt,
	})
	if err != nil {
		return "", fmt.Errorf("submit masked fill: %w", err)
	}
	return id, nil
}

// Poll reads the current state of a submitted job.
func (s *HTTPService) Poll(ctx context.Context, requestID string) (*PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/jobs/"+requestID, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	body, statusCode, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", requestID, err)
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("poll %s: HTTP %d: %s", requestID, statusCode, truncate(string(body), 200))
	}

	var result PollResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse poll response: %w (body: %s)", err, truncate(string(body), 200))
	}
	return &result, nil
}

// --- Internal helpers ---

// submit posts a JSON submit request and returns the request ID.
func (s *HTTPService) submit(ctx context.Context, endpoint string, payload submitRequest) (string, error) {
	startTime := time.Now()

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	log.Debug().Str("method", http.MethodPost).Str("path", endpoint).Msg("Generation service request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	body, statusCode, err := s.do(req)
	duration := time.Since(startTime)
	log.Debug().Int("statusCode", statusCode).Dur("duration", duration).Str("path", endpoint).Msg("Generation service response")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	if resp.Error != nil {
		log.Error().Str("errorMessage", resp.Error.Message).Str("errorCode", resp.Error.Code).Msg("Generation service error")
		return "", fmt.Errorf("service error: %s (code: %s)", resp.Error.Message, resp.Error.Code)
	}
	if statusCode < 200 || statusCode >= 300 {
		return "", fmt.Errorf("HTTP %d: %s", statusCode, truncate(string(body), 200))
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("response missing requestId (body: %s)", truncate(string(body), 200))
	}
	return resp.RequestID, nil
}

func (s *HTTPService) do(req *http.Request) ([]byte, int, error) {
	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, httpResp.StatusCode, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
