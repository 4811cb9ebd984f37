// Package refiner runs the full refinement pipeline: compile the
// instruction, resolve background state against the refinement chain,
// mutate or synthesize the prompt, and drive the generation service with a
// degrading strategy ladder until one rung produces a refined image.
package refiner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/design-refine/internal/chain"
	"github.com/fpang/design-refine/internal/compile"
	"github.com/fpang/design-refine/internal/gencache"
	"github.com/fpang/design-refine/internal/genservice"
	"github.com/fpang/design-refine/internal/imagestore"
	"github.com/fpang/design-refine/internal/metrics"
	"github.com/fpang/design-refine/internal/scene"
)

// Edit types name the strategy ladder rung that produced the result.
const (
	EditStructured = "structured"
	EditMask       = "mask"
	EditText       = "text"
	EditDirect     = "direct"
)

const metricsNamespace = "DesignRefine"

// DirectEditor is the synchronous last-resort edit backend.
type DirectEditor interface {
	EditImage(ctx context.Context, imageURL, instruction string) (*genservice.GeminiEditResult, error)
}

// Uploader re-hosts raw image bytes and returns a key and a fetchable URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, mimeType string) (string, string, error)
}

// Result is the outcome of one refinement request.
type Result struct {
	RefinedImageURL   string                `json:"refinedImageUrl"`
	EditType          string                `json:"editType"`
	OperationsApplied []compile.Operation   `json:"operationsApplied"`
	Overrides         []compile.Override    `json:"overrides,omitempty"`
	Unparsed          []string              `json:"unparsed,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`
	ChainID           string                `json:"chainId,omitempty"`
	LookupTier        string                `json:"lookupTier"`
	Background        chain.BackgroundState `json:"background"`
}

// Refiner wires the pipeline stages together.
type Refiner struct {
	service genservice.Service
	chains  *chain.Manager
	cache   gencache.Cache

	// editor and uploader serve the direct-edit rung; both nil disables it.
	editor   DirectEditor
	uploader Uploader
}

// New creates a Refiner without the direct-edit rung.
func New(service genservice.Service, chains *chain.Manager, cache gencache.Cache) *Refiner {
	return &Refiner{service: service, chains: chains, cache: cache}
}

// WithDirectEdit enables the synchronous last-resort rung.
func (r *Refiner) WithDirectEdit(editor DirectEditor, uploader Uploader) *Refiner {
	r.editor = editor
	r.uploader = uploader
	return r
}

// outcome is what the strategy ladder hands back to Refine.
type outcome struct {
	url      string
	editType string
	depth    int

	// structured is the descriptor the winning rung rendered from, when
	// one existed; it seeds the generation cache for the result image.
	structured *scene.Prompt
	// prompt is the plain-text prompt, for the text and direct rungs.
	prompt string
	// info is set on the direct rung, where the raw bytes are in hand.
	info *imagestore.ImageInfo
}

// Refine executes one instruction against one image.
func (r *Refiner) Refine(ctx context.Context, instruction, imageURL string) (*Result, error) {
	startTime := time.Now()

	plan := compile.Compile(instruction)
	if len(plan.Operations) == 0 {
		return nil, fmt.Errorf("instruction %q produced no operations (unparsed: %v): %w",
			instruction, plan.Unparsed, ErrUnparsed)
	}

	lookup, err := r.chains.Lookup(ctx, imageURL)
	if err != nil {
		// A store failure must not fail the edit; degrade to the default
		// background state.
		log.Warn().Err(err).Str("imageUrl", imageURL).Msg("Chain lookup failed, using default background state")
		lookup = chain.Lookup{Tier: chain.TierDefault, State: chain.DefaultState()}
	}
	state := lookup.State

	// Every refinement appends to the chain history; only a valid
	// background operation moves the state.
	bgOp := plan.BackgroundOp()
	state, err = r.chains.UpdateChainBackground(ctx, imageURL, plan.Instruction, bgOp)
	if err != nil {
		if bgOp != nil {
			return nil, fmt.Errorf("update chain background: %w", err)
		}
		// A lost history entry must not fail a non-background edit.
		log.Warn().Err(err).Str("imageUrl", imageURL).Msg("Chain history append failed")
		state = lookup.State
	}

	// Recover the structured prompt the service rendered this image from.
	// A miss degrades the primary rung to plain-text augmentation.
	var structured *scene.Prompt
	var originalPrompt string
	if rec, err := r.cache.Get(ctx, imageURL); err != nil {
		log.Warn().Err(err).Str("imageUrl", imageURL).Msg("Generation cache read failed")
	} else if rec != nil {
		structured = rec.Structured
		originalPrompt = rec.OriginalPrompt
	}

	out, err := r.execute(ctx, plan, imageURL, structured, originalPrompt, state)
	if err != nil {
		r.emit(plan, lookup, "", time.Since(startTime), false, 0)
		return nil, err
	}

	r.persist(ctx, out, state)
	r.emit(plan, lookup, out.editType, time.Since(startTime), true, out.depth)

	result := &Result{
		RefinedImageURL:   out.url,
		EditType:          out.editType,
		OperationsApplied: plan.Operations,
		Overrides:         plan.Overrides,
		Unparsed:          plan.Unparsed,
		Warnings:          plan.Warnings,
		LookupTier:        lookup.Tier,
		Background:        state,
	}
	if lookup.Chain != nil {
		result.ChainID = lookup.Chain.ID
	}
	return result, nil
}

// execute walks the strategy ladder: structured prompt, then per-operation
// mask edits, then plain-text augmentation, then the direct editor. Only
// when every rung fails does the request fail.
func (r *Refiner) execute(ctx context.Context, plan compile.Plan, imageURL string, structured *scene.Prompt, originalPrompt string, state chain.BackgroundState) (*outcome, error) {
	depth := 0
	var lastErr error

	if structured != nil {
		mutated := scene.Apply(*structured, plan.Operations, state)
		out, err := r.runStructured(ctx, imageURL, mutated)
		if err == nil {
			out.depth = depth
			return out, nil
		}
		lastErr = err
		log.Warn().Err(err).Msg("Structured edit failed, falling back to mask path")
		depth++
	}

	out, err := r.runMaskPath(ctx, plan, imageURL)
	if err == nil {
		out.depth = depth
		return out, nil
	}
	lastErr = err
	log.Warn().Err(err).Msg("Mask path failed, falling back to plain-text edit")
	depth++

	prompt := augmentedPrompt(plan, state, originalPrompt)
	out, err = r.runText(ctx, imageURL, prompt)
	if err == nil {
		out.depth = depth
		return out, nil
	}
	lastErr = err
	depth++

	if r.editor != nil && r.uploader != nil {
		log.Warn().Err(err).Msg("Plain-text edit failed, falling back to direct edit")
		out, err = r.runDirect(ctx, imageURL, prompt)
		if err == nil {
			out.depth = depth
			return out, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrAllStrategiesFailed, lastErr)
}

func (r *Refiner) runStructured(ctx context.Context, imageURL string, prompt scene.Prompt) (*outcome, error) {
	requestID, err := r.service.SubmitStructured(ctx, imageURL, prompt, genservice.SubmitOptions{})
	if err != nil {
		return nil, err
	}
	result, err := genservice.WaitForResult(ctx, r.service, requestID)
	if err != nil {
		return nil, err
	}

	// The echo reflects what the service actually rendered; prefer it over
	// what was submitted.
	rendered := &prompt
	if result.StructuredEcho != nil {
		rendered = result.StructuredEcho
	}
	return &outcome{url: result.ResultImageURL, editType: EditStructured, structured: rendered}, nil
}

// runMaskPath applies the operations one by one, chaining each result URL
// into the next edit. A mask or fill failure degrades that one operation to
// a plain-text edit instead of aborting the whole plan.
func (r *Refiner) runMaskPath(ctx context.Context, plan compile.Plan, imageURL string) (*outcome, error) {
	current := imageURL
	for _, op := range plan.Operations {
		next, err := r.applyMaskOp(ctx, current, op)
		if err != nil {
			return nil, fmt.Errorf("mask path at %q: %w", op.SourceText, err)
		}
		current = next
	}
	return &outcome{url: current, editType: EditMask}, nil
}

func (r *Refiner) applyMaskOp(ctx context.Context, imageURL string, op compile.Operation) (string, error) {
	switch op.Kind {
	case compile.KindBackground:
		var requestID string
		var err error
		if op.IsRemoval {
			requestID, err = r.service.RemoveBackground(ctx, imageURL)
		} else {
			requestID, err = r.service.ReplaceBackground(ctx, imageURL, op.Value+" background")
		}
		if err != nil {
			return "", err
		}
		result, err := genservice.WaitForResult(ctx, r.service, requestID)
		if err != nil {
			return "", err
		}
		return result.ResultImageURL, nil

	case compile.KindGeneral:
		return r.textEdit(ctx, imageURL, operationText(op))

	default:
		maskURL, err := r.generateMask(ctx, imageURL, op.Target)
		if err != nil {
			// Degrade this one operation, not the request.
			log.Warn().Err(err).Str("target", op.Target).Msg("Mask generation failed, degrading operation to text edit")
			return r.textEdit(ctx, imageURL, operationText(op))
		}
		requestID, err := r.service.FillMasked(ctx, imageURL, maskURL, operationText(op))
		if err != nil {
			return r.textEdit(ctx, imageURL, operationText(op))
		}
		result, err := genservice.WaitForResult(ctx, r.service, requestID)
		if err != nil {
			log.Warn().Err(err).Str("target", op.Target).Msg("Masked fill failed, degrading operation to text edit")
			return r.textEdit(ctx, imageURL, operationText(op))
		}
		return result.ResultImageURL, nil
	}
}

func (r *Refiner) generateMask(ctx context.Context, imageURL, target string) (string, error) {
	requestID, err := r.service.GenerateMask(ctx, imageURL, target)
	if err != nil {
		return "", err
	}
	result, err := genservice.WaitForResult(ctx, r.service, requestID)
	if err != nil {
		return "", err
	}
	return result.ResultImageURL, nil
}

func (r *Refiner) textEdit(ctx context.Context, imageURL, prompt string) (string, error) {
	requestID, err := r.service.SubmitText(ctx, imageURL, prompt, genservice.SubmitOptions{})
	if err != nil {
		return "", err
	}
	result, err := genservice.WaitForResult(ctx, r.service, requestID)
	if err != nil {
		return "", err
	}
	return result.ResultImageURL, nil
}

func (r *Refiner) runText(ctx context.Context, imageURL, prompt string) (*outcome, error) {
	url, err := r.textEdit(ctx, imageURL, prompt)
	if err != nil {
		return nil, err
	}
	return &outcome{url: url, editType: EditText, prompt: prompt}, nil
}

func (r *Refiner) runDirect(ctx context.Context, imageURL, prompt string) (*outcome, error) {
	edited, err := r.editor.EditImage(ctx, imageURL, prompt)
	if err != nil {
		return nil, err
	}
	_, url, err := r.uploader.Upload(ctx, edited.ImageData, edited.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("re-host direct edit result: %w", err)
	}
	// The model sometimes echoes the scene it rendered as JSON in the text
	// part; carry it so the next refinement can take the structured rung.
	out := &outcome{url: url, editType: EditDirect, prompt: prompt, structured: edited.Structured}
	if info, err := imagestore.Inspect(edited.ImageData); err == nil {
		out.info = info
	}
	return out, nil
}

// persist records the result image in the generation cache and seeds its
// chain, so a follow-up edit against the refined URL finds both the
// structured prompt and the background state.
func (r *Refiner) persist(ctx context.Context, out *outcome, state chain.BackgroundState) {
	rec := &gencache.Record{
		ImageURL:       out.url,
		OriginalPrompt: out.prompt,
		Structured:     out.structured,
		Background:     state,
		CreatedAt:      time.Now(),
	}
	if out.info != nil {
		rec.Width = out.info.Width
		rec.Height = out.info.Height
		rec.Format = out.info.Format
	}
	if err := r.cache.Put(ctx, rec); err != nil {
		log.Warn().Err(err).Str("imageUrl", out.url).Msg("Failed to write generation cache record")
	}
	if err := r.chains.Seed(ctx, out.url, state); err != nil {
		log.Warn().Err(err).Str("imageUrl", out.url).Msg("Failed to seed chain for refined image")
	}
}

func (r *Refiner) emit(plan compile.Plan, lookup chain.Lookup, editType string, elapsed time.Duration, success bool, depth int) {
	rec := metrics.New(metricsNamespace).
		Dimension("Outcome", outcomeLabel(success)).
		Count("RefineRequests").
		Metric("OperationCount", float64(len(plan.Operations)), metrics.UnitCount).
		Metric("ConflictOverrides", float64(len(plan.Overrides)), metrics.UnitCount).
		Metric("UnparsedFragments", float64(len(plan.Unparsed)), metrics.UnitCount).
		Metric("FallbackDepth", float64(depth), metrics.UnitNone).
		Timing("RefineLatency", elapsed).
		Property("lookupTier", lookup.Tier)
	if editType != "" {
		rec = rec.Property("editType", editType)
	}
	rec.Flush()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
