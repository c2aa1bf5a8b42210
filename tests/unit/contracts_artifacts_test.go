package unit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestEventContractArtifactsAreValid(t *testing.T) {
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(root, "contracts/events/v1/*.json"))
	if err != nil {
		t.Fatalf("invalid glob pattern: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("no event contract artifacts found")
	}

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		var schema struct {
			Title    string   `json:"title"`
			Type     string   `json:"type"`
			Required []string `json:"required"`
		}
		if err := json.Unmarshal(data, &schema); err != nil {
			t.Fatalf("invalid json contract file %s: %v", path, err)
		}
		if schema.Title == "" || schema.Type != "object" {
			t.Fatalf("contract %s missing title or object type", path)
		}
		if len(schema.Required) == 0 {
			t.Fatalf("contract %s declares no required fields", path)
		}
	}
}

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	current := wd
	for {
		if _, err := os.Stat(filepath.Join(current, "go.mod")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("go.mod not found from %s", wd)
		}
		current = parent
	}
}
