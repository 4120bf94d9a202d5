package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// patternTableFile is the on-disk shape an operator edits; LoadPatternTable
// converts it into the in-memory PatternTable.
type patternTableFile struct {
	Version                   int      `yaml:"version"`
	FrameworkClassPrefixes    []string `yaml:"framework_class_prefixes"`
	ResetSelectors            []string `yaml:"reset_selectors"`
	GenericStructuralPatterns []string `yaml:"generic_structural_patterns"`
}

// LoadPatternTable reads a versioned YAML pattern table from disk,
// replacing inline literals so operators can update it without a redeploy.
func LoadPatternTable(path string) (PatternTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PatternTable{}, fmt.Errorf("reading pattern table %s: %w", path, err)
	}

	var f patternTableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return PatternTable{}, fmt.Errorf("parsing pattern table %s: %w", path, err)
	}
	if f.Version <= 0 {
		return PatternTable{}, fmt.Errorf("pattern table %s: version must be positive", path)
	}

	return PatternTable{
		Version:                   f.Version,
		FrameworkClassPrefixes:    f.FrameworkClassPrefixes,
		ResetSelectors:            f.ResetSelectors,
		GenericStructuralPatterns: f.GenericStructuralPatterns,
	}, nil
}
