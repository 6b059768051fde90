package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/config"
)

// OpenAIGenerator produces metadata with chat completions. Images go in as
// data URLs, audio is transcribed with Whisper first, and documents arrive
// as extracted text. Video is not supported on this provider.
type OpenAIGenerator struct {
	client          openai.Client
	model           string
	transcribeModel string
	logger          *zap.Logger
}

func NewOpenAIGenerator(cfg config.Config, logger *zap.Logger) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, errors.New("openai api key is not configured")
	}

	return &OpenAIGenerator{
		client:          openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey)),
		model:           cfg.OpenAIModel,
		transcribeModel: cfg.OpenAIModelTranscribe,
		logger:          logger,
	}, nil
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, req MetadataRequest) (map[string]string, error) {
	var userMessage openai.ChatCompletionMessageParamUnion

	switch req.Content.Kind {
	case KindImage:
		prompt := buildMetadataPrompt(req.FileName, "The image is attached.", req.Fields)
		dataURL := fmt.Sprintf("data:%s;base64,%s", req.Content.MIME, base64.StdEncoding.EncodeToString(req.Content.Data))
		userMessage = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		})

	case KindAudio:
		transcript, err := g.transcribe(ctx, req.FileName, req.Content)
		if err != nil {
			return nil, err
		}
		hint := fmt.Sprintf("Transcript of the audio:\n%s", transcript)
		userMessage = openai.UserMessage(buildMetadataPrompt(req.FileName, hint, req.Fields))

	case KindVideo:
		return nil, fmt.Errorf("video files are not supported by the openai provider; configure AI_PROVIDER=gemini")

	case KindPDF, KindOffice, KindText:
		if strings.TrimSpace(req.Content.Text) == "" {
			return nil, fmt.Errorf("no text could be extracted from %s", req.FileName)
		}
		hint := fmt.Sprintf("Extracted document text:\n%s", req.Content.Text)
		userMessage = openai.UserMessage(buildMetadataPrompt(req.FileName, hint, req.Fields))

	default:
		return nil, fmt.Errorf("unsupported content kind %q", req.Content.Kind)
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(metadataSystemPrompt),
			userMessage,
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	g.logger.Debug("openai completion",
		zap.String("file", req.FileName),
		zap.String("model", g.model))

	return parseMetadataResponse(resp.Choices[0].Message.Content, req.Fields)
}

func (g *OpenAIGenerator) transcribe(ctx context.Context, fileName string, content Content) (string, error) {
	resp, err := g.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(g.transcribeModel),
		File:  openai.File(bytes.NewReader(content.Data), fileName, content.MIME),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", fileName, err)
	}

	transcript := strings.TrimSpace(resp.Text)
	if transcript == "" {
		return "", fmt.Errorf("empty transcript for %s", fileName)
	}
	return transcript, nil
}
