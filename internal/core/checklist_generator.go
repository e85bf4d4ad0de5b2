package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/preppal/prep-assistant/internal/store"
)

const defaultGenerationTimeout = 30 * time.Second

// Generator turns a free-text request into a checklist suggestion.
type Generator interface {
	Generate(ctx context.Context, request string) (*Generation, error)
}

type ChecklistMetadata struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    store.Category `json:"category"`
	Points      int            `json:"points"`
}

type Generation struct {
	Checklist   ChecklistMetadata   `json:"checklist"`
	Items       []store.PayloadItem `json:"items"`
	DisplayText string              `json:"display_text"`
	TokensUsed  int                 `json:"tokens_used"`
}

// Payload returns the checklist in the form stored on assistant messages.
func (g *Generation) Payload() *store.ChecklistPayload {
	items := make([]store.PayloadItem, len(g.Items))
	copy(items, g.Items)
	return &store.ChecklistPayload{
		Title:       g.Checklist.Title,
		Description: g.Checklist.Description,
		Category:    g.Checklist.Category,
		Points:      g.Checklist.Points,
		Items:       items,
	}
}

// ChecklistGenerator asks the model for a checklist. One round trip, no retry.
type ChecklistGenerator struct {
	backend           StructuredGenerator
	systemInstruction string
	timeout           time.Duration
}

func NewChecklistGenerator(backend StructuredGenerator, prompts Prompts, timeout time.Duration) *ChecklistGenerator {
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &ChecklistGenerator{
		backend:           backend,
		systemInstruction: prompts.ChecklistSystemInstruction,
		timeout:           timeout,
	}
}

func (g *ChecklistGenerator) Generate(ctx context.Context, request string) (*Generation, error) {
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("%w: request is empty", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, tokens, err := g.backend.GenerateStructuredContent(ctx, request, checklistResponseSchema, g.systemInstruction)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	gen, err := ParseChecklistResponse(text)
	if err != nil {
		log.Printf("Unparseable checklist response (%d bytes): %v", len(text), err)
		return nil, &GenerationError{Err: err}
	}
	gen.TokensUsed = tokens
	return gen, nil
}

type checklistResponse struct {
	Checklist      *ChecklistMetadata  `json:"checklist"`
	Items          []store.PayloadItem `json:"items"`
	DisplayMessage string              `json:"display_message"`
}

// ParseChecklistResponse decodes and validates the model's JSON output.
func ParseChecklistResponse(text string) (*Generation, error) {
	var resp checklistResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Checklist == nil {
		return nil, fmt.Errorf("%w: missing checklist", ErrMalformedResponse)
	}
	if strings.TrimSpace(resp.DisplayMessage) == "" {
		return nil, fmt.Errorf("%w: missing display_message", ErrMalformedResponse)
	}

	gen := &Generation{
		Checklist:   *resp.Checklist,
		Items:       resp.Items,
		DisplayText: strings.TrimSpace(resp.DisplayMessage),
	}
	if err := gen.Payload().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return gen, nil
}
