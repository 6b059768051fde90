package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/config"
	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/domain"
)

// MetadataRequest carries everything a provider needs to fill a template
// for one file.
type MetadataRequest struct {
	FileName string
	Content  Content
	Fields   []domain.TemplateField
}

// MetadataGenerator produces metadata values keyed by template field name.
type MetadataGenerator interface {
	Name() string
	Generate(ctx context.Context, req MetadataRequest) (map[string]string, error)
}

// NewMetadataGenerator picks the provider configured via AI_PROVIDER.
func NewMetadataGenerator(ctx context.Context, cfg config.Config, logger *zap.Logger) (MetadataGenerator, error) {
	switch cfg.AIProvider {
	case "openai":
		return NewOpenAIGenerator(cfg, logger)
	case "gemini":
		return NewGeminiGenerator(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q (want openai or gemini)", cfg.AIProvider)
	}
}

const metadataSystemPrompt = "You are a digital asset librarian. Given a file, produce concise, factual metadata. " +
	"Respond with a single JSON object and nothing else: no prose, no markdown fences."

// buildMetadataPrompt renders the template fields into instructions the
// model can follow. contentHint describes what accompanies the prompt
// (an attached image, a transcript, extracted text).
func buildMetadataPrompt(fileName, contentHint string, fields []domain.TemplateField) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "File name: %s\n", fileName)
	if contentHint != "" {
		sb.WriteString(contentHint)
		sb.WriteString("\n")
	}

	sb.WriteString("\nFill in the following metadata fields. Return a JSON object whose keys are exactly the field names below.\n\n")
	for _, f := range fields {
		fmt.Fprintf(&sb, "- %q (%s)", f.Name, f.Type)
		if f.Description != "" {
			fmt.Fprintf(&sb, ": %s", f.Description)
		}
		if len(f.Options) > 0 {
			fmt.Fprintf(&sb, ", choose one of: %s", strings.Join(f.Options, ", "))
		}
		if f.Required {
			sb.WriteString(" (required)")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nIf a field cannot be determined from the content, use an empty string.")

	return sb.String()
}

// parseMetadataResponse decodes the model output into field values. Keys
// not present in the template are dropped; select fields with a value
// outside their options are cleared rather than failing the file.
func parseMetadataResponse(raw string, fields []domain.TemplateField) (map[string]string, error) {
	cleaned := stripCodeFence(raw)

	var decoded map[string]any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, fmt.Errorf("model did not return valid JSON: %w", err)
	}

	metadata := make(map[string]string, len(fields))
	for _, f := range fields {
		value, ok := decoded[f.Name]
		if !ok {
			continue
		}
		text := stringifyValue(value)
		if len(f.Options) > 0 && text != "" && !containsFold(f.Options, text) {
			text = ""
		}
		if text != "" {
			metadata[f.Name] = text
		}
	}

	if len(metadata) == 0 {
		return nil, fmt.Errorf("model returned no usable field values")
	}
	return metadata, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if the model
// ignored the no-fences instruction.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
	case bool:
		return fmt.Sprintf("%t", v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringifyValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

func containsFold(options []string, value string) bool {
	for _, opt := range options {
		if strings.EqualFold(opt, value) {
			return true
		}
	}
	return false
}
