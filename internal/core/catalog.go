package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/preppal/prep-assistant/internal/store"
	"gopkg.in/yaml.v3"
)

type taskCatalog struct {
	Tasks []store.Task `yaml:"tasks"`
}

// ParseTaskCatalog decodes a YAML document with a top-level tasks list.
func ParseTaskCatalog(data []byte) ([]store.Task, error) {
	var catalog taskCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unmarshal task catalog: %w", err)
	}

	seen := map[string]bool{}
	for i, t := range catalog.Tasks {
		id := strings.TrimSpace(t.ID)
		switch {
		case id == "":
			return nil, fmt.Errorf("task %d: id is required", i)
		case seen[id]:
			return nil, fmt.Errorf("task %s: duplicate id", id)
		case strings.TrimSpace(t.Title) == "":
			return nil, fmt.Errorf("task %s: title is required", id)
		case !t.Category.Valid():
			return nil, fmt.Errorf("task %s: unknown category %q", id, t.Category)
		case t.Points < 0:
			return nil, fmt.Errorf("task %s: negative points", id)
		}
		seen[id] = true
		catalog.Tasks[i].ID = id
	}
	return catalog.Tasks, nil
}

func LoadTaskCatalog(path string) ([]store.Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task catalog: %w", err)
	}
	return ParseTaskCatalog(b)
}

// SeedTasks upserts every task by id.
func SeedTasks(ctx context.Context, repo store.Repository, tasks []store.Task) error {
	for i := range tasks {
		if err := repo.UpsertTask(ctx, &tasks[i]); err != nil {
			return persistenceError("seed task "+tasks[i].ID, err)
		}
	}
	log.Printf("Seeded %d catalog tasks", len(tasks))
	return nil
}
