package store

import "time"

type Household struct {
	HasChildren   bool `json:"has_children"`
	HasElderly    bool `json:"has_elderly"`
	HasPets       bool `json:"has_pets"`
	HasDisability bool `json:"has_disability"`
}

// Profile is the user-editable part of a User.
type Profile struct {
	DisplayName  string    `json:"display_name"`
	Location     string    `json:"location"`
	Household    Household `json:"household"`
	MedicalNotes []string  `json:"medical_notes"`
}

type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email"`
	Profile
	Points    int       `json:"points"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Checklist *ChecklistPayload `json:"checklist,omitempty"` // assistant messages only
	CreatedAt time.Time         `json:"created_at"`
}

type Checklist struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	SourceMessageID *string         `json:"source_message_id,omitempty"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        Category        `json:"category"`
	Points          int             `json:"points"`
	Completed       bool            `json:"completed"`
	Items           []ChecklistItem `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type ChecklistItem struct {
	ID          string   `json:"id"`
	ChecklistID string   `json:"checklist_id"`
	Position    int      `json:"position"`
	Text        string   `json:"text"`
	Priority    Priority `json:"priority"`
	Completed   bool     `json:"completed"`
}

// AllItemsCompleted reports whether every item is complete. A checklist
// without items is never complete.
func (c *Checklist) AllItemsCompleted() bool {
	if len(c.Items) == 0 {
		return false
	}
	for _, item := range c.Items {
		if !item.Completed {
			return false
		}
	}
	return true
}

// Task is a built-in catalog entry shared by all users.
type Task struct {
	ID            string    `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	Description   string    `json:"description" yaml:"description"`
	Category      Category  `json:"category" yaml:"category"`
	Points        int       `json:"points" yaml:"points"`
	Steps         []string  `json:"steps" yaml:"steps"`
	DisasterTypes []string  `json:"disaster_types" yaml:"disaster_types"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"`
}

// TaskCompletion records that a user completed a catalog task. PointsAwarded
// is fixed at completion time.
type TaskCompletion struct {
	UserID        string    `json:"user_id"`
	TaskID        string    `json:"task_id"`
	PointsAwarded int       `json:"points_awarded"`
	CompletedAt   time.Time `json:"completed_at"`
}
