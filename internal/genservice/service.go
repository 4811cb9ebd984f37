// Package genservice is the client for the external image generation and
// editing service. Every edit path follows the same shape: submit a job,
// then poll the returned request ID until it reaches a terminal state.
package genservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/design-refine/internal/scene"
)

// Status is the job state reported by the generation service.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// Poll loop settings. The interval is fixed; a job that is not terminal
// after maxPollAttempts fails with ErrServiceTimeout instead of hanging.
const (
	defaultPollInterval = 2 * time.Second
	maxPollAttempts     = 30
)

// ErrServiceTimeout is returned when a job never reaches a terminal state
// within the bounded poll attempts.
var ErrServiceTimeout = errors.New("generation service poll timed out")

// ErrServiceFailure is returned when the service reports a terminal ERROR.
var ErrServiceFailure = errors.New("generation service reported failure")

// PollResult is one poll response for a submitted job.
type PollResult struct {
	Status Status `json:"status"`

	// ResultImageURL is set when Status is COMPLETED.
	ResultImageURL string `json:"resultImageUrl,omitempty"`

	// StructuredEcho is the scene descriptor the service rendered from,
	// echoed back on completion when the job was structured.
	StructuredEcho *scene.Prompt `json:"structuredPromptEcho,omitempty"`

	// Error carries the service-side failure message when Status is ERROR.
	Error string `json:"error,omitempty"`
}

// SubmitOptions tunes a submission.
type SubmitOptions struct {
	// Seed pins the service's sampler for reproducible output. Zero means
	// let the service choose.
	Seed int64

	// Strength controls how far an edit may drift from the source image,
	// in [0,1]. Zero means service default.
	Strength float64
}

// Service is the generation service client surface. All submit methods
// return a request ID to poll. Implementations are safe for concurrent use.
type Service interface {
	// SubmitStructured submits a full structured scene prompt against the
	// source image.
	SubmitStructured(ctx context.Context, imageURL string, prompt scene.Prompt, opts SubmitOptions) (string, error)

	// SubmitText submits a plain-text edit prompt against the source
	// image. This is the last-resort path when no structured prompt can
	// be recovered.
	SubmitText(ctx context.Context, imageURL, prompt string, opts SubmitOptions) (string, error)

	// RemoveBackground requests background removal on the source image.
	RemoveBackground(ctx context.Context, imageURL string) (string, error)

	// ReplaceBackground requests a prompt-guided background replacement.
	ReplaceBackground(ctx context.Context, imageURL, background string) (string, error)

	// GenerateMask requests an object mask for the named target.
	GenerateMask(ctx context.Context, imageURL, target string) (string, error)

	// FillMasked requests a prompt-guided fill constrained to maskURL.
	FillMasked(ctx context.Context, imageURL, maskURL, prompt string) (string, error)

	// Poll reads the current state of a submitted job.
	Poll(ctx context.Context, requestID string) (*PollResult, error)
}

// WaitForResult polls requestID at a fixed interval until the job reaches a
// terminal state or the attempt budget runs out.
func WaitForResult(ctx context.Context, svc Service, requestID string) (*PollResult, error) {
	return waitForResult(ctx, svc, requestID, defaultPollInterval, maxPollAttempts)
}

func waitForResult(ctx context.Context, svc Service, requestID string, interval time.Duration, attempts int) (*PollResult, error) {
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := svc.Poll(ctx, requestID)
		if err != nil {
			// Transient poll errors do not consume the job; retry.
			log.Warn().Err(err).Str("requestId", requestID).Int("attempt", attempt).Msg("Poll error, retrying")
		} else {
			switch result.Status {
			case StatusCompleted:
				log.Debug().Str("requestId", requestID).Int("attempts", attempt).Msg("Generation job completed")
				return result, nil
			case StatusError:
				return nil, fmt.Errorf("request %s: %s: %w", requestID, result.Error, ErrServiceFailure)
			case StatusInProgress:
				log.Trace().Str("requestId", requestID).Dur("nextPoll", interval).Msg("Generation job still running")
			default:
				log.Warn().Str("requestId", requestID).Str("status", string(result.Status)).Msg("Unknown job status")
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("request %s: no terminal state after %d attempts: %w", requestID, attempts, ErrServiceTimeout)
}
