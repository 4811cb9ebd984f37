package genservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fpang/design-refine/internal/scene"
)

func newTestService(server *httptest.Server) *HTTPService {
	return &HTTPService{
		httpClient: server.Client(),
		baseURL:    server.URL,
		apiKey:     "test-key",
	}
}

func TestSubmitStructured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/edits/structured" {
			t.Errorf("path = %s, want /v1/edits/structured", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ImageURL != "https://cdn.example.com/in.png" {
			t.Errorf("imageUrl = %q", req.ImageURL)
		}
		if req.Structured == nil || len(req.Structured.Objects) != 1 {
			t.Errorf("structured = %+v, want one object", req.Structured)
		}
		json.NewEncoder(w).Encode(submitResponse{RequestID: "req-abc"})
	}))
	defer server.Close()

	svc := newTestService(server)
	prompt := scene.Prompt{
		ShortDescription: "a skull",
		Objects:          []scene.Object{{Description: "a grinning skull"}},
		Background:       "transparent background",
	}
	id, err := svc.SubmitStructured(context.Background(), "https://cdn.example.com/in.png", prompt, SubmitOptions{})
	if err != nil {
		t.Fatalf("SubmitStructured: %v", err)
	}
	if id != "req-abc" {
		t.Errorf("requestId = %q, want req-abc", id)
	}
}

func TestSubmitEndpoints(t *testing.T) {
	var gotPath string
	var gotReq submitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(submitResponse{RequestID: "req-1"})
	}))
	defer server.Close()
	svc := newTestService(server)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() (string, error)
		wantPath string
		check    func(t *testing.T)
	}{
		{
			"text", func() (string, error) {
				return svc.SubmitText(ctx, "img", "add a hat", SubmitOptions{})
			}, "/v1/edits/text", func(t *testing.T) {
				if gotReq.Prompt != "add a hat" {
					t.Errorf("prompt = %q", gotReq.Prompt)
				}
			},
		},
		{
			"removeBackground", func() (string, error) {
				return svc.RemoveBackground(ctx, "img")
			}, "/v1/background/remove", nil,
		},
		{
			"replaceBackground", func() (string, error) {
				return svc.ReplaceBackground(ctx, "img", "forest background")
			}, "/v1/background/replace", func(t *testing.T) {
				if gotReq.Background != "forest background" {
					t.Errorf("background = %q", gotReq.Background)
				}
			},
		},
		{
			"generateMask", func() (string, error) {
				return svc.GenerateMask(ctx, "img", "hat")
			}, "/v1/masks", func(t *testing.T) {
				if gotReq.Target != "hat" {
					t.Errorf("target = %q", gotReq.Target)
				}
			},
		},
		{
			"fillMasked", func() (string, error) {
				return svc.FillMasked(ctx, "img", "mask-url", "make the hat blue")
			}, "/v1/fills", func(t *testing.T) {
				if gotReq.MaskURL != "mask-url" {
					t.Errorf("maskUrl = %q", gotReq.MaskURL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.call()
			if err != nil {
				t.Fatalf("call: %v", err)
			}
			if id != "req-1" {
				t.Errorf("requestId = %q", id)
			}
			if gotPath != tt.wantPath {
				t.Errorf("path = %q, want %q", gotPath, tt.wantPath)
			}
			if tt.check != nil {
				tt.check(t)
			}
		})
	}
}

func TestSubmitServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(submitResponse{Error: &apiErr{Message: "bad prompt", Code: "INVALID"}})
	}))
	defer server.Close()

	svc := newTestService(server)
	_, err := svc.SubmitText(context.Background(), "img", "", SubmitOptions{})
	if err == nil {
		t.Fatal("expected an error from a service-side failure")
	}
}

func TestPoll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/v1/jobs/req-xyz" {
			t.Errorf("path = %s, want /v1/jobs/req-xyz", r.URL.Path)
		}
		json.NewEncoder(w).Encode(PollResult{
			Status:         StatusCompleted,
			ResultImageURL: "https://cdn.example.com/out.png",
		})
	}))
	defer server.Close()

	svc := newTestService(server)
	result, err := svc.Poll(context.Background(), "req-xyz")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", result.Status, StatusCompleted)
	}
	if result.ResultImageURL != "https://cdn.example.com/out.png" {
		t.Errorf("resultImageUrl = %q", result.ResultImageURL)
	}
}

func TestPollHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	svc := newTestService(server)
	if _, err := svc.Poll(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error on HTTP 404")
	}
}
