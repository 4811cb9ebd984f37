package refiner

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	svc := newFakeService()
	r, _, _ := newTestRefiner(svc)
	server := httptest.NewServer(NewMux(r))
	t.Cleanup(server.Close)
	return server, svc
}

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleRefineSuccess(t *testing.T) {
	server, _ := newTestServer(t)
	payload := `{"instruction": "change the background to a forest", "imageUrl": "https://cdn.example.com/in.png"}`
	resp, err := http.Post(server.URL+"/api/refine", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.RefinedImageURL == "" {
		t.Error("refinedImageUrl is empty")
	}
	if len(result.OperationsApplied) != 1 {
		t.Errorf("operationsApplied = %d, want 1", len(result.OperationsApplied))
	}
	if result.Background.Description != "forest background" {
		t.Errorf("background = %q, want \"forest background\"", result.Background.Description)
	}
}

func TestHandleRefineMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/refine")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleRefineBadRequests(t *testing.T) {
	server, _ := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing instruction", `{"imageUrl": "https://cdn.example.com/in.png"}`},
		{"missing imageUrl", `{"instruction": "add a hat"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/refine", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestHandleRefineUnparsed(t *testing.T) {
	server, _ := newTestServer(t)
	payload := `{"instruction": "sparkles everywhere", "imageUrl": "https://cdn.example.com/in.png"}`
	resp, err := http.Post(server.URL+"/api/refine", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	// Internal detail stays server-side.
	if strings.Contains(body["error"], "unparsed:") {
		t.Errorf("error leaked internals: %q", body["error"])
	}
}
