package services

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fieldsync/inspector/internal/models"
)

//go:embed rules/photo_rules.yaml
var defaultPhotoRules []byte

// SectionLimits bounds how many photos a section holds. Max 0 is unlimited.
type SectionLimits struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// PhotoRules maps panel subtypes to per-section photo limits
type PhotoRules struct {
	Defaults map[string]SectionLimits            `yaml:"defaults"`
	Subtypes map[string]map[string]SectionLimits `yaml:"subtypes"`
}

// LoadPhotoRules reads rules from path, or the embedded defaults when path is empty
func LoadPhotoRules(path string) (*PhotoRules, error) {
	data := defaultPhotoRules
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read photo rules: %w", err)
		}
	}
	return ParsePhotoRules(data)
}

// ParsePhotoRules decodes and validates a YAML rules document
func ParsePhotoRules(data []byte) (*PhotoRules, error) {
	var rules PhotoRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse photo rules: %w", err)
	}

	check := func(scope string, sections map[string]SectionLimits) error {
		for name, limits := range sections {
			if _, err := models.ParsePhotoSection(name); err != nil {
				return fmt.Errorf("%s: %w", scope, err)
			}
			if limits.Min < 0 || limits.Max < 0 || (limits.Max > 0 && limits.Min > limits.Max) {
				return fmt.Errorf("%s: section %s has invalid limits %d..%d", scope, name, limits.Min, limits.Max)
			}
		}
		return nil
	}

	if err := check("defaults", rules.Defaults); err != nil {
		return nil, err
	}
	for subtype, sections := range rules.Subtypes {
		if err := check("subtype "+subtype, sections); err != nil {
			return nil, err
		}
	}
	return &rules, nil
}

// Limits returns the limits of a section for a subtype.
// ok is false when the subtype does not use the section at all.
func (r *PhotoRules) Limits(subtype string, section models.PhotoSection) (limits SectionLimits, ok bool) {
	key := section.String()
	if sections, found := r.Subtypes[subtype]; found {
		if limits, ok = sections[key]; ok {
			return limits, true
		}
	}
	limits, ok = r.Defaults[key]
	return limits, ok
}

// Sections lists every section a subtype accepts in a phase, sorted by name
func (r *PhotoRules) Sections(subtype string, phase models.PhotoPhase) []models.PhotoSection {
	seen := make(map[string]bool)
	for name := range r.Defaults {
		seen[name] = true
	}
	for name := range r.Subtypes[subtype] {
		seen[name] = true
	}

	var sections []models.PhotoSection
	for name := range seen {
		section, err := models.ParsePhotoSection(name)
		if err == nil && section.Phase == phase {
			sections = append(sections, section)
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].String() < sections[j].String() })
	return sections
}
