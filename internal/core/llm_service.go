package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultChatModelName = "gemini-1.5-flash-latest"

// StructuredGenerator is the AI collaborator: one prompt in, one JSON document
// conforming to schema out.
type StructuredGenerator interface {
	GenerateStructuredContent(ctx context.Context, prompt string, schema *genai.Schema, systemInstruction string) (text string, tokensUsed int, err error)
}

// GeminiBackend implements StructuredGenerator over the Gemini API.
type GeminiBackend struct {
	client    *genai.Client
	modelName string
}

func NewGeminiBackend(ctx context.Context, apiKey, modelName string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = defaultChatModelName
	}
	return &GeminiBackend{client: client, modelName: modelName}, nil
}

func (b *GeminiBackend) Close() {
	if b.client != nil {
		if err := b.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (b *GeminiBackend) GenerateStructuredContent(ctx context.Context, prompt string, schema *genai.Schema, systemInstruction string) (string, int, error) {
	model := b.client.GenerativeModel(b.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	temp := float32(0.4)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", 0, fmt.Errorf("gemini request failed: %w", err)
	}

	tokens := 0
	if resp != nil && resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", tokens, fmt.Errorf("gemini response was empty or had no valid candidates")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}
	if responseText.Len() == 0 {
		return "", tokens, fmt.Errorf("gemini response contained no text")
	}
	return responseText.String(), tokens, nil
}

// checklistResponseSchema is the fixed output contract of the checklist
// generator. Length and range limits are stated in descriptions and enforced
// again when parsing.
var checklistResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"checklist": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":       {Type: genai.TypeString, Description: "Short checklist title, at most 60 characters"},
				"description": {Type: genai.TypeString, Description: "One or two sentences on why this matters"},
				"category": {
					Type:   genai.TypeString,
					Format: "enum",
					Enum:   []string{"supplies", "planning", "skills", "home", "personal"},
				},
				"points": {Type: genai.TypeInteger, Description: "Effort points from 5 to 50"},
			},
			Required: []string{"title", "description", "category", "points"},
		},
		"items": {
			Type:        genai.TypeArray,
			Description: "Between 1 and 5 checklist items",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"text":     {Type: genai.TypeString, Description: "Action to take, at most 120 characters"},
					"priority": {Type: genai.TypeString, Format: "enum", Enum: []string{"high", "medium", "low"}},
				},
				Required: []string{"text", "priority"},
			},
		},
		"display_message": {Type: genai.TypeString, Description: "Friendly message shown to the user"},
	},
	Required: []string{"checklist", "items", "display_message"},
}
