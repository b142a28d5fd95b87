package plan

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type catalogFile struct {
	Plans []catalogEntry `yaml:"plans"`
}

type catalogEntry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Terms        string `yaml:"terms"`
	Rate         string `yaml:"rate"`
	DurationDays int    `yaml:"duration_days"`
	Active       *bool  `yaml:"active"`
}

// LoadCatalog reads plan definitions from a YAML file.
func LoadCatalog(path string) ([]Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes a YAML catalog. Plans default to active.
func ParseCatalog(raw []byte) ([]Plan, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Plans))
	plans := make([]Plan, 0, len(file.Plans))
	for i, e := range file.Plans {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("plan %d: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("plan %s: duplicate id", id)
		}
		seen[id] = true
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("plan %s: name is required", id)
		}
		rate := decimal.Zero
		if e.Rate != "" {
			r, err := decimal.NewFromString(e.Rate)
			if err != nil {
				return nil, fmt.Errorf("plan %s: invalid rate %q: %w", id, e.Rate, err)
			}
			rate = r
		}
		if e.DurationDays < 0 {
			return nil, fmt.Errorf("plan %s: duration_days must not be negative", id)
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		plans = append(plans, Plan{
			ID:           id,
			Name:         e.Name,
			Description:  e.Description,
			Terms:        e.Terms,
			Rate:         rate,
			DurationDays: e.DurationDays,
			IsActive:     active,
		})
	}
	return plans, nil
}
