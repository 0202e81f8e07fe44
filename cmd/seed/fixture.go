package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	catalogSvc "diskcatalog/internal/domain/services/catalog"
)

// Fixture is an ordered list of catalog operations
type Fixture struct {
	Steps []Step `yaml:"steps"`
}

// Step holds exactly one of Import or Delete
type Step struct {
	Import *catalogSvc.ImportRequest `yaml:"import,omitempty"`
	Delete *DeleteStep               `yaml:"delete,omitempty"`
}

// DeleteStep removes a subtree as of Date
type DeleteStep struct {
	ID   string `yaml:"id"`
	Date string `yaml:"date"`
}

// LoadFixture reads and checks a YAML fixture file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("fixture has no steps")
	}
	for i, step := range f.Steps {
		if (step.Import == nil) == (step.Delete == nil) {
			return nil, fmt.Errorf("steps[%d]: exactly one of import or delete is required", i)
		}
	}
	return &f, nil
}

// Apply runs the steps in order and stops at the first failure
func (f *Fixture) Apply(
	ctx context.Context,
	imports catalogSvc.ImportService,
	deletes catalogSvc.DeleteService,
	logger *slog.Logger,
) error {
	for i, step := range f.Steps {
		switch {
		case step.Import != nil:
			result, err := imports.Import(ctx, step.Import)
			if err != nil {
				return fmt.Errorf("steps[%d] import at %s: %w", i, step.Import.UpdateDate, err)
			}
			logger.Info("imported",
				"step", i,
				"date", step.Import.UpdateDate,
				"created", result.Created,
				"updated", result.Updated,
			)
		case step.Delete != nil:
			result, err := deletes.DeleteNode(ctx, step.Delete.ID, step.Delete.Date)
			if err != nil {
				return fmt.Errorf("steps[%d] delete %s: %w", i, step.Delete.ID, err)
			}
			logger.Info("deleted",
				"step", i,
				"id", step.Delete.ID,
				"removed", result.Removed,
			)
		}
	}
	return nil
}
