package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/config"
)

// GeminiGenerator produces metadata with the Gemini API. All media kinds
// including video and raw PDFs can be attached inline, so no transcription
// step is needed.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiGenerator(ctx context.Context, cfg config.Config, logger *zap.Logger) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: cfg.GeminiModel, logger: logger}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, req MetadataRequest) (map[string]string, error) {
	var parts []*genai.Part

	switch req.Content.Kind {
	case KindImage, KindVideo, KindAudio:
		prompt := buildMetadataPrompt(req.FileName, "The media file is attached.", req.Fields)
		parts = []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: req.Content.MIME, Data: req.Content.Data}},
		}

	case KindPDF:
		// Prefer the native document path; fall back to scraped text when the
		// original bytes were dropped upstream.
		if len(req.Content.Data) > 0 {
			prompt := buildMetadataPrompt(req.FileName, "The PDF document is attached.", req.Fields)
			parts = []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: req.Content.Data}},
			}
			break
		}
		fallthrough

	case KindOffice, KindText:
		if strings.TrimSpace(req.Content.Text) == "" {
			return nil, fmt.Errorf("no text could be extracted from %s", req.FileName)
		}
		hint := fmt.Sprintf("Extracted document text:\n%s", req.Content.Text)
		parts = []*genai.Part{{Text: buildMetadataPrompt(req.FileName, hint, req.Fields)}}

	default:
		return nil, fmt.Errorf("unsupported content kind %q", req.Content.Kind)
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: metadataSystemPrompt}}},
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.2),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := collectResponseText(resp)
	if text == "" {
		return nil, errors.New("gemini returned no text")
	}

	g.logger.Debug("gemini completion",
		zap.String("file", req.FileName),
		zap.String("model", g.model))

	return parseMetadataResponse(text, req.Fields)
}

func collectResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
