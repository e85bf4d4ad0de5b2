package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/preppal/prep-assistant/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestChecklistGeneratorGenerate(t *testing.T) {
	prompts := DefaultPrompts()

	t.Run("returns parsed checklist and token count", func(t *testing.T) {
		backend := new(MockStructuredGenerator)
		backend.On("GenerateStructuredContent", mock.Anything, "What do I need for an earthquake?",
			checklistResponseSchema, prompts.ChecklistSystemInstruction).Return(earthquakeJSON, 42, nil)

		gen, err := NewChecklistGenerator(backend, prompts, 0).Generate(context.Background(), "What do I need for an earthquake?")
		require.NoError(t, err)
		assert.Equal(t, "Earthquake go-bag", gen.Checklist.Title)
		assert.Equal(t, store.CategorySupplies, gen.Checklist.Category)
		assert.Equal(t, 20, gen.Checklist.Points)
		assert.Len(t, gen.Items, 3)
		assert.Equal(t, store.PriorityLow, gen.Items[2].Priority)
		assert.Equal(t, "Here is a starter go-bag checklist.", gen.DisplayText)
		assert.Equal(t, 42, gen.TokensUsed)
		backend.AssertExpectations(t)
	})

	t.Run("backend failure is a generation error", func(t *testing.T) {
		backend := new(MockStructuredGenerator)
		backend.On("GenerateStructuredContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", 0, errors.New("quota exceeded"))

		_, err := NewChecklistGenerator(backend, prompts, 0).Generate(context.Background(), "help")
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("malformed response is not defaulted", func(t *testing.T) {
		backend := new(MockStructuredGenerator)
		backend.On("GenerateStructuredContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"checklist": {"title": "x"`, 10, nil)

		gen, err := NewChecklistGenerator(backend, prompts, 0).Generate(context.Background(), "help")
		assert.Nil(t, gen)
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("empty request never reaches the backend", func(t *testing.T) {
		backend := new(MockStructuredGenerator)
		_, err := NewChecklistGenerator(backend, prompts, 0).Generate(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrInvalidInput)
		backend.AssertNotCalled(t, "GenerateStructuredContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("call carries a deadline", func(t *testing.T) {
		backend := new(MockStructuredGenerator)
		backend.On("GenerateStructuredContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				_, ok := args.Get(0).(context.Context).Deadline()
				assert.True(t, ok)
			}).Return(earthquakeJSON, 1, nil)

		_, err := NewChecklistGenerator(backend, prompts, 0).Generate(context.Background(), "help")
		require.NoError(t, err)
	})
}

func TestParseChecklistResponse(t *testing.T) {
	valid := func(mutate func(string) string) string { return mutate(earthquakeJSON) }

	tests := []struct {
		name string
		text string
	}{
		{"not json", "here is your checklist!"},
		{"missing checklist", `{"items": [{"text": "a", "priority": "high"}], "display_message": "hi"}`},
		{"missing display message", valid(func(s string) string {
			return strings.Replace(s, `"display_message": "Here is a starter go-bag checklist."`, `"display_message": ""`, 1)
		})},
		{"unknown category", valid(func(s string) string {
			return strings.Replace(s, `"supplies"`, `"food"`, 1)
		})},
		{"points below range", valid(func(s string) string {
			return strings.Replace(s, `"points": 20`, `"points": 4`, 1)
		})},
		{"points above range", valid(func(s string) string {
			return strings.Replace(s, `"points": 20`, `"points": 51`, 1)
		})},
		{"title too long", valid(func(s string) string {
			return strings.Replace(s, `"Earthquake go-bag"`, `"`+strings.Repeat("a", 61)+`"`, 1)
		})},
		{"item too long", valid(func(s string) string {
			return strings.Replace(s, `"Pack 3 days of water"`, `"`+strings.Repeat("b", 121)+`"`, 1)
		})},
		{"unknown priority", valid(func(s string) string {
			return strings.Replace(s, `"priority": "low"`, `"priority": "urgent"`, 1)
		})},
		{"no items", `{"checklist": {"title": "t", "description": "d", "category": "home", "points": 10},
			"items": [], "display_message": "hi"}`},
		{"too many items", `{"checklist": {"title": "t", "description": "d", "category": "home", "points": 10},
			"items": [{"text": "1", "priority": "low"}, {"text": "2", "priority": "low"}, {"text": "3", "priority": "low"},
			{"text": "4", "priority": "low"}, {"text": "5", "priority": "low"}, {"text": "6", "priority": "low"}],
			"display_message": "hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := ParseChecklistResponse(tt.text)
			assert.Nil(t, gen)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}

	t.Run("limits are inclusive", func(t *testing.T) {
		text := strings.Replace(earthquakeJSON, `"points": 20`, `"points": 50`, 1)
		text = strings.Replace(text, `"Earthquake go-bag"`, `"`+strings.Repeat("é", 60)+`"`, 1)
		gen, err := ParseChecklistResponse(text)
		require.NoError(t, err)
		assert.Equal(t, 50, gen.Checklist.Points)
	})
}

func TestGenerationPayload(t *testing.T) {
	gen := earthquakeGeneration()
	p := gen.Payload()
	require.NoError(t, p.Validate())
	assert.Equal(t, gen.Checklist.Title, p.Title)
	assert.Equal(t, gen.Items, p.Items)

	p.Items[0].Text = "changed"
	assert.Equal(t, "Pack 3 days of water", gen.Items[0].Text)
}
