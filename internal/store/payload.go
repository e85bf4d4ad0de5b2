package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Category string

const (
	CategorySupplies Category = "supplies"
	CategoryPlanning Category = "planning"
	CategorySkills   Category = "skills"
	CategoryHome     Category = "home"
	CategoryPersonal Category = "personal"
)

var Categories = []Category{CategorySupplies, CategoryPlanning, CategorySkills, CategoryHome, CategoryPersonal}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

const (
	MaxPayloadTitleLen = 60
	MaxPayloadItemLen  = 120
	MinPayloadPoints   = 5
	MaxPayloadPoints   = 50
	MinPayloadItems    = 1
	MaxPayloadItems    = 5
)

// ErrInvalidPayload is returned when a checklist payload violates the
// generator's output contract.
var ErrInvalidPayload = errors.New("invalid checklist payload")

// ChecklistPayload is the structured checklist an assistant message carries.
type ChecklistPayload struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    Category      `json:"category"`
	Points      int           `json:"points"`
	Items       []PayloadItem `json:"items"`
}

type PayloadItem struct {
	Text     string   `json:"text"`
	Priority Priority `json:"priority"`
}

func (p *ChecklistPayload) Validate() error {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidPayload)
	}
	if utf8.RuneCountInString(title) > MaxPayloadTitleLen {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidPayload, MaxPayloadTitleLen)
	}
	if !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidPayload, p.Category)
	}
	if p.Points < MinPayloadPoints || p.Points > MaxPayloadPoints {
		return fmt.Errorf("%w: points %d outside [%d,%d]", ErrInvalidPayload, p.Points, MinPayloadPoints, MaxPayloadPoints)
	}
	if len(p.Items) < MinPayloadItems || len(p.Items) > MaxPayloadItems {
		return fmt.Errorf("%w: %d items, want %d to %d", ErrInvalidPayload, len(p.Items), MinPayloadItems, MaxPayloadItems)
	}
	for i, item := range p.Items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			return fmt.Errorf("%w: item %d text is empty", ErrInvalidPayload, i)
		}
		if utf8.RuneCountInString(text) > MaxPayloadItemLen {
			return fmt.Errorf("%w: item %d longer than %d characters", ErrInvalidPayload, i, MaxPayloadItemLen)
		}
		if !item.Priority.Valid() {
			return fmt.Errorf("%w: item %d has unknown priority %q", ErrInvalidPayload, i, item.Priority)
		}
	}
	return nil
}

// DecodeChecklistPayload decodes and validates a stored or generated payload.
func DecodeChecklistPayload(data []byte) (*ChecklistPayload, error) {
	var p ChecklistPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode checklist payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

// decodeStringList decodes a JSON array of strings. Empty input is an empty list.
func decodeStringList(data string) ([]string, error) {
	if strings.TrimSpace(data) == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
