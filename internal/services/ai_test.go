package services

import (
	"strings"
	"testing"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/domain"
)

var testFields = []domain.TemplateField{
	{Name: "title", Type: "text", Required: true},
	{Name: "category", Type: "select", Options: []string{"photo", "document"}},
	{Name: "year", Type: "number"},
}

func TestBuildMetadataPrompt(t *testing.T) {
	prompt := buildMetadataPrompt("holiday.jpg", "The image is attached.", testFields)

	for _, want := range []string{"holiday.jpg", "\"title\"", "\"category\"", "photo, document", "(required)"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestParseMetadataResponse(t *testing.T) {
	raw := `{"title": "Beach sunset", "category": "photo", "year": 2021, "bogus": "x"}`

	metadata, err := parseMetadataResponse(raw, testFields)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if metadata["title"] != "Beach sunset" {
		t.Fatalf("unexpected title: %q", metadata["title"])
	}
	if metadata["year"] != "2021" {
		t.Fatalf("expected numeric value as string, got %q", metadata["year"])
	}
	if _, ok := metadata["bogus"]; ok {
		t.Fatalf("unknown key should be dropped")
	}
}

func TestParseMetadataResponseStripsFences(t *testing.T) {
	raw := "```json\n{\"title\": \"Doc\"}\n```"

	metadata, err := parseMetadataResponse(raw, testFields)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if metadata["title"] != "Doc" {
		t.Fatalf("unexpected title: %q", metadata["title"])
	}
}

func TestParseMetadataResponseRejectsInvalidOption(t *testing.T) {
	raw := `{"title": "Doc", "category": "spreadsheet"}`

	metadata, err := parseMetadataResponse(raw, testFields)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := metadata["category"]; ok {
		t.Fatalf("value outside select options should be cleared, got %q", metadata["category"])
	}
}

func TestParseMetadataResponseInvalidJSON(t *testing.T) {
	if _, err := parseMetadataResponse("I cannot help with that.", testFields); err == nil {
		t.Fatalf("expected error for non-JSON response")
	}
}

func TestParseMetadataResponseListValue(t *testing.T) {
	raw := `{"title": ["First", "Second"]}`

	metadata, err := parseMetadataResponse(raw, testFields)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if metadata["title"] != "First, Second" {
		t.Fatalf("expected joined list, got %q", metadata["title"])
	}
}
