package refiner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fpang/design-refine/internal/chain"
	"github.com/fpang/design-refine/internal/gencache"
	"github.com/fpang/design-refine/internal/genservice"
	"github.com/fpang/design-refine/internal/scene"
)

// fakeService implements genservice.Service with per-endpoint failure
// switches. Every accepted submission completes on the first poll.
type fakeService struct {
	structuredErr error
	textErr       error
	removeErr     error
	replaceErr    error
	maskErr       error
	fillErr       error
	echo          *scene.Prompt

	mu                sync.Mutex
	seq               int
	results           map[string]*genservice.PollResult
	structuredPrompts []scene.Prompt
	textPrompts       []string
	backgrounds       []string
}

func newFakeService() *fakeService {
	return &fakeService{results: make(map[string]*genservice.PollResult)}
}

func (f *fakeService) accept(kind string, echo *scene.Prompt) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("%s-%d", kind, f.seq)
	f.results[id] = &genservice.PollResult{
		Status:         genservice.StatusCompleted,
		ResultImageURL: "https://svc.example.com/results/" + id + ".png",
		StructuredEcho: echo,
	}
	return id
}

func (f *fakeService) SubmitStructured(ctx context.Context, imageURL string, prompt scene.Prompt, opts genservice.SubmitOptions) (string, error) {
	if f.structuredErr != nil {
		return "", f.structuredErr
	}
	f.mu.Lock()
	f.structuredPrompts = append(f.structuredPrompts, prompt.Clone())
	f.mu.Unlock()
	return f.accept("structured", f.echo), nil
}

func (f *fakeService) SubmitText(ctx context.Context, imageURL, prompt string, opts genservice.SubmitOptions) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	f.mu.Lock()
	f.textPrompts = append(f.textPrompts, prompt)
	f.mu.Unlock()
	return f.accept("text", nil), nil
}

func (f *fakeService) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	if f.removeErr != nil {
		return "", f.removeErr
	}
	return f.accept("remove", nil), nil
}

func (f *fakeService) ReplaceBackground(ctx context.Context, imageURL, background string) (string, error) {
	if f.replaceErr != nil {
		return "", f.replaceErr
	}
	f.mu.Lock()
	f.backgrounds = append(f.backgrounds, background)
	f.mu.Unlock()
	return f.accept("replace", nil), nil
}

func (f *fakeService) GenerateMask(ctx context.Context, imageURL, target string) (string, error) {
	if f.maskErr != nil {
		return "", f.maskErr
	}
	return f.accept("mask", nil), nil
}

func (f *fakeService) FillMasked(ctx context.Context, imageURL, maskURL, prompt string) (string, error) {
	if f.fillErr != nil {
		return "", f.fillErr
	}
	return f.accept("fill", nil), nil
}

func (f *fakeService) Poll(ctx context.Context, requestID string) (*genservice.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[requestID]
	if !ok {
		return nil, fmt.Errorf("unknown request %s", requestID)
	}
	return r, nil
}

const testImageURL = "https://cdn.example.com/designs/abcdef123456.png"

func newTestRefiner(svc genservice.Service) (*Refiner, *chain.Manager, *gencache.MemoryCache) {
	manager := chain.NewManager(chain.NewMemoryStore())
	cache := gencache.NewMemoryCache()
	return New(svc, manager, cache), manager, cache
}

func seedStructured(t *testing.T, cache *gencache.MemoryCache) {
	t.Helper()
	err := cache.Put(context.Background(), &gencache.Record{
		ImageURL: testImageURL,
		Structured: &scene.Prompt{
			ShortDescription: "a grinning skull",
			Objects:          []scene.Object{{Description: "a grinning skull"}},
			Background:       "transparent background",
		},
		Background: chain.DefaultState(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRefineStructuredPath(t *testing.T) {
	svc := newFakeService()
	r, _, cache := newTestRefiner(svc)
	seedStructured(t, cache)

	result, err := r.Refine(context.Background(), "add a hat", testImageURL)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if result.EditType != EditStructured {
		t.Errorf("editType = %q, want %q", result.EditType, EditStructured)
	}
	if result.RefinedImageURL == "" {
		t.Error("refinedImageUrl is empty")
	}
	if len(result.OperationsApplied) != 1 {
		t.Errorf("operationsApplied = %d, want 1", len(result.OperationsApplied))
	}

	if len(svc.structuredPrompts) != 1 {
		t.Fatalf("structured submissions = %d, want 1", len(svc.structuredPrompts))
	}
	submitted := svc.structuredPrompts[0]
	if len(submitted.Objects) != 2 {
		t.Errorf("submitted objects = %d, want skull plus hat", len(submitted.Objects))
	}
	if submitted.Background != chain.DefaultDescription {
		t.Errorf("submitted background = %q, want %q", submitted.Background, chain.DefaultDescription)
	}

	// The result image is cached so follow-up edits stay structured.
	rec, err := cache.Get(context.Background(), result.RefinedImageURL)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Structured == nil {
		t.Errorf("no structured cache record for the result image: %+v", rec)
	}
}

func TestRefineFallsBackToMaskPath(t *testing.T) {
	svc := newFakeService()
	svc.structuredErr = errors.New("structured endpoint down")
	r, _, cache := newTestRefiner(svc)
	seedStructured(t, cache)

	result, err := r.Refine(context.Background(), "make the teeth golden", testImageURL)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if result.EditType != EditMask {
		t.Errorf("editType = %q, want %q", result.EditType, EditMask)
	}
}

func TestRefineMaskPathDegradesOperationToText(t *testing.T) {
	// Mask generation fails; the single operation degrades to a text edit
	// inside the mask rung instead of failing the request.
	svc := newFakeService()
	svc.maskErr = errors.New("mask model unavailable")
	r, _, _ := newTestRefiner(svc)

	result, err := r.Refine(context.Background(), "make the teeth golden", testImageURL)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if result.EditType != EditMask {
		t.Errorf("editType = %q, want %q", result.EditType, EditMask)
	}
	if len(svc.textPrompts) != 1 {
		t.Fatalf("text submissions = %d, want 1 degraded edit", len(svc.textPrompts))
	}
	if svc.textPrompts[0] != "make the teeth golden" {
		t.Errorf("degraded prompt = %q", svc.textPrompts[0])
	}
}

func TestRefineFallsBackToText(t *testing.T) {
	svc := newFakeService()
	svc.replaceErr = errors.New("replace endpoint down")
	r, _, _ := newTestRefiner(svc)

	result, err := r.Refine(context.Background(), "change the background to a forest", testImageURL)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if result.EditType != EditText {
		t.Errorf("editType = %q, want %q", result.EditType, EditText)
	}
	if len(svc.textPrompts) != 1 {
		t.Fatalf("text submissions = %d, want 1", len(svc.textPrompts))
	}
	if !strings.Contains(svc.textPrompts[0], "Apply these edits:") {
		t.Errorf("prompt = %q, want an augmented edit prompt", svc.textPrompts[0])
	}
}

func TestRefineBackgroundSurvivesNonBackgroundEdit(t *testing.T) {
	svc := newFakeService()
	r, manager, _ := newTestRefiner(svc)

	if _, err := r.Refine(context.Background(), "change the background to a forest", testImageURL); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Refine(context.Background(), "add a crown", testImageURL); err != nil {
		t.Fatal(err)
	}

	state, err := manager.CurrentState(context.Background(), testImageURL)
	if err != nil {
		t.Fatal(err)
	}
	if state.Description != "forest background" {
		t.Errorf("chain description = %q, want \"forest background\"", state.Description)
	}
	if state.Kind != chain.StateExplicit {
		t.Errorf("chain kind = %q, want %q", state.Kind, chain.StateExplicit)
	}
}

func TestRefineAppendsHistoryForEveryEdit(t *testing.T) {
	svc := newFakeService()
	r, manager, _ := newTestRefiner(svc)

	if _, err := r.Refine(context.Background(), "change the background to a forest", testImageURL); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Refine(context.Background(), "add a crown", testImageURL); err != nil {
		t.Fatal(err)
	}

	lu, err := manager.Lookup(context.Background(), testImageURL)
	if err != nil {
		t.Fatal(err)
	}
	if lu.Chain == nil {
		t.Fatal("no chain recorded")
	}
	if len(lu.Chain.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(lu.Chain.History))
	}
	if !lu.Chain.History[0].BackgroundOp {
		t.Error("first entry should be marked as a background operation")
	}
	if lu.Chain.History[1].BackgroundOp {
		t.Error("second entry should not be marked as a background operation")
	}
	if lu.Chain.History[1].Instruction != "add a crown" {
		t.Errorf("second entry instruction = %q, want \"add a crown\"", lu.Chain.History[1].Instruction)
	}
}

func TestRefineBackgroundUpdatesChain(t *testing.T) {
	svc := newFakeService()
	r, manager, _ := newTestRefiner(svc)

	result, err := r.Refine(context.Background(), "change the background to a city", testImageURL)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if result.Background.Kind != chain.StateExplicit {
		t.Errorf("result background kind = %q, want %q", result.Background.Kind, chain.StateExplicit)
	}
	if len(svc.backgrounds) != 1 || svc.backgrounds[0] != "city background" {
		t.Errorf("replace backgrounds = %v, want [city background]", svc.backgrounds)
	}

	state, err := manager.CurrentState(context.Background(), testImageURL)
	if err != nil {
		t.Fatal(err)
	}
	if state.Description != "city background" {
		t.Errorf("chain description = %q, want \"city background\"", state.Description)
	}
}

func TestRefineUnparsed(t *testing.T) {
	svc := newFakeService()
	r, _, _ := newTestRefiner(svc)
	_, err := r.Refine(context.Background(), "sparkles everywhere", testImageURL)
	if !errors.Is(err, ErrUnparsed) {
		t.Fatalf("err = %v, want ErrUnparsed", err)
	}
}

func TestRefineAllStrategiesFailed(t *testing.T) {
	svc := newFakeService()
	svc.structuredErr = errors.New("down")
	svc.replaceErr = errors.New("down")
	svc.textErr = errors.New("down")
	r, _, cache := newTestRefiner(svc)
	seedStructured(t, cache)

	_, err := r.Refine(context.Background(), "change the background to a forest", testImageURL)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
}

// fakeEditor and fakeUploader serve the direct-edit rung.
type fakeEditor struct {
	err        error
	structured *scene.Prompt
}

func (f *fakeEditor) EditImage(ctx context.Context, imageURL, instruction string) (*genservice.GeminiEditResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &genservice.GeminiEditResult{
		ImageData:  []byte("image-bytes"),
		MIMEType:   "image/png",
		Structured: f.structured,
	}, nil
}

type fakeUploader struct{}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, mimeType string) (string, string, error) {
	return "refined/key", "https://bucket.s3.example.com/refined/key", nil
}

func TestRefineDirectEditLastResort(t *testing.T) {
	svc := newFakeService()
	svc.maskErr = errors.New("down")
	svc.fillErr = errors.New("down")
	svc.textErr = errors.New("down")
	r, _, _ := newTestRefiner(svc)
	r.WithDirectEdit(&fakeEditor{}, &fakeUploader{})

	result, err := r.Refine(context.Background(), "make the teeth golden", testImageURL)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if result.EditType != EditDirect {
		t.Errorf("editType = %q, want %q", result.EditType, EditDirect)
	}
	if result.RefinedImageURL != "https://bucket.s3.example.com/refined/key" {
		t.Errorf("refinedImageUrl = %q", result.RefinedImageURL)
	}
}

func TestRefineDirectEditSeedsStructuredCache(t *testing.T) {
	svc := newFakeService()
	svc.maskErr = errors.New("down")
	svc.fillErr = errors.New("down")
	svc.textErr = errors.New("down")
	r, _, cache := newTestRefiner(svc)
	echoed := &scene.Prompt{ShortDescription: "a grinning skull with golden teeth"}
	r.WithDirectEdit(&fakeEditor{structured: echoed}, &fakeUploader{})

	result, err := r.Refine(context.Background(), "make the teeth golden", testImageURL)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}

	rec, err := cache.Get(context.Background(), result.RefinedImageURL)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Structured == nil {
		t.Fatal("expected the echoed descriptor in the generation cache")
	}
	if rec.Structured.ShortDescription != echoed.ShortDescription {
		t.Errorf("cached short description = %q", rec.Structured.ShortDescription)
	}
}
