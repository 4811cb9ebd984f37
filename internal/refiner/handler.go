package refiner

// handler.go is the HTTP boundary: POST /api/refine runs the pipeline and
// returns the Result as JSON. The same mux serves both the Lambda adapter
// and a plain net/http server.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/design-refine/internal/genservice"
)

// refineRequest is the POST /api/refine body.
type refineRequest struct {
	Instruction string `json:"instruction"`
	ImageURL    string `json:"imageUrl"`
}

// NewMux returns the API routes for serving refinement requests.
func NewMux(r *Refiner) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", handleHealth)
	mux.HandleFunc("/api/refine", handleRefine(r))
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "design-refine",
	})
}

func handleRefine(ref *Refiner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req refineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
			return
		}
		req.Instruction = strings.TrimSpace(req.Instruction)
		req.ImageURL = strings.TrimSpace(req.ImageURL)
		if req.Instruction == "" {
			httpError(w, http.StatusBadRequest, "instruction is required")
			return
		}
		if req.ImageURL == "" {
			httpError(w, http.StatusBadRequest, "imageUrl is required")
			return
		}

		log.Info().
			Str("imageUrl", req.ImageURL).
			Int("instructionLength", len(req.Instruction)).
			Msg("Refine request received")

		result, err := ref.Refine(r.Context(), req.Instruction, req.ImageURL)
		if err != nil {
			switch {
			case errors.Is(err, ErrUnparsed):
				httpError(w, http.StatusUnprocessableEntity, "instruction not understood", err.Error())
			case errors.Is(err, genservice.ErrServiceTimeout):
				httpError(w, http.StatusGatewayTimeout, "generation service timed out", err.Error())
			default:
				httpError(w, http.StatusBadGateway, "refinement failed", err.Error())
			}
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// --- JSON helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. Internal details are logged
// server-side but never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}
