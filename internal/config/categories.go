package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryRules maps a navigation category to the query keywords that imply
// it. Used as the fallback when session memory carries no explicit category.
type CategoryRules map[string][]string

// DefaultCategoryRules mirrors the storefront's navigation taxonomy. A
// categories.yaml file, when present, replaces this map entirely.
func DefaultCategoryRules() CategoryRules {
	return CategoryRules{
		"special-offer": {"offer", "deal", "discount", "sale"},
		"health-mix":    {"health mix", "multigrain", "millet", "porridge", "sathu maavu"},
		"ready-to-cook": {"idli", "dosa", "batter", "instant", "ready to cook"},
		"combos":        {"combo", "bundle", "pack of", "gift pack"},
		"infant-food":   {"baby", "infant", "toddler", "weaning"},
	}
}

// LoadCategoryRules reads category keyword rules from a YAML file. A missing
// file falls back to the built-in rules.
func LoadCategoryRules(path string) (CategoryRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCategoryRules(), nil
		}
		return nil, fmt.Errorf("error reading categories file: %w", err)
	}

	var rules CategoryRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("error parsing categories YAML: %w", err)
	}
	if len(rules) == 0 {
		return DefaultCategoryRules(), nil
	}
	return rules, nil
}
