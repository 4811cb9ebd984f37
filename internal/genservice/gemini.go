package genservice

// gemini.go is the last rung of the fallback ladder: a direct, synchronous
// image edit through the Gemini API. Unlike the REST service it returns
// image bytes inline instead of a hosted URL, so the caller re-hosts the
// result before recording it on a chain.

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/design-refine/internal/jsonutil"
	"github.com/fpang/design-refine/internal/scene"
)

const (
	// geminiImageModel supports IMAGE response modality.
	geminiImageModel = "gemini-2.5-flash-image"

	// geminiEditTimeout bounds one synchronous edit call. Image output
	// regularly takes 10-30s.
	geminiEditTimeout = 120 * time.Second
)

// GeminiEditor performs direct image edits via the Gemini API.
type GeminiEditor struct {
	client     *genai.Client
	model      string
	httpClient *http.Client
}

// GeminiEditResult holds one direct edit result.
type GeminiEditResult struct {
	// ImageData is the raw bytes of the edited image.
	ImageData []byte
	// MIMEType is the output image MIME type.
	MIMEType string
	// Text is any description returned alongside the image.
	Text string
	// Structured is the scene descriptor parsed out of Text when the model
	// echoed one, nil otherwise.
	Structured *scene.Prompt
}

// NewGeminiEditor creates a direct-edit client.
// apiKey is typically loaded from SSM Parameter Store at Lambda cold start.
func NewGeminiEditor(ctx context.Context, apiKey string) (*GeminiEditor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &GeminiEditor{
		client:     client,
		model:      geminiImageModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// EditImage fetches the source image, sends it with the instruction, and
// returns the edited image bytes.
func (g *GeminiEditor) EditImage(ctx context.Context, imageURL, instruction string) (*GeminiEditResult, error) {
	imageData, mimeType, err := g.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch source image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, geminiEditTimeout)
	defer cancel()

	startTime := time.Now()
	log.Info().
		Str("model", g.model).
		Int("imageBytes", len(imageData)).
		Str("imageMime", mimeType).
		Msg("Sending image to Gemini for direct edit")

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			{Text: instruction},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	duration := time.Since(startTime)
	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Gemini direct edit failed")
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	result := &GeminiEditResult{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			result.ImageData = part.InlineData.Data
			result.MIMEType = part.InlineData.MIMEType
		}
		if part.Text != "" {
			result.Text = part.Text
		}
	}
	if len(result.ImageData) == 0 {
		return nil, fmt.Errorf("Gemini response contained no image data (text: %s)", truncate(result.Text, 200))
	}
	result.Structured = structuredFromText(result.Text)

	log.Info().
		Int("resultBytes", len(result.ImageData)).
		Dur("duration", duration).
		Msg("Gemini direct edit completed")
	return result, nil
}

// structuredFromText recovers a scene descriptor from the text the model
// returns alongside the image. The model usually wraps it in a markdown
// code fence with prose around it; anything that does not parse into a
// usable descriptor is silently dropped.
func structuredFromText(text string) *scene.Prompt {
	if text == "" {
		return nil
	}
	prompt, err := jsonutil.ParseJSON[scene.Prompt](text)
	if err != nil {
		return nil
	}
	if prompt.ShortDescription == "" && len(prompt.Objects) == 0 {
		return nil
	}
	return &prompt
}

func (g *GeminiEditor) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d fetching image", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
