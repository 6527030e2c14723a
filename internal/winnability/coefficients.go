// Package winnability scores each keyword's rankability for the target domain
// from SERP composition, with industry-tuned coefficients and graceful
// degradation when SERP data is partial or absent.
package winnability

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Coefficients are the industry-tunable scoring weights. The shipped values
// are empirically seeded defaults, not derived constants; tune them per
// vertical in the coefficients file.
type Coefficients struct {
	DRWeight          float64 `yaml:"dr_weight"`
	LowDRBonus        float64 `yaml:"low_dr_bonus"`
	ContentBonusMax   float64 `yaml:"content_bonus_max"`
	AIOverviewPenalty float64 `yaml:"ai_overview_penalty"`
	KDMultiplier      float64 `yaml:"kd_multiplier"`
}

// CoefficientTable holds the versioned per-industry coefficient variants.
type CoefficientTable struct {
	Version    int                     `yaml:"version"`
	Default    Coefficients            `yaml:"default"`
	Industries map[string]Coefficients `yaml:"industries"`
}

// DefaultCoefficients are used when no coefficients file is configured.
func DefaultCoefficients() *CoefficientTable {
	return &CoefficientTable{
		Version: 1,
		Default: Coefficients{
			DRWeight:          1.0,
			LowDRBonus:        8,
			ContentBonusMax:   15,
			AIOverviewPenalty: 12,
			KDMultiplier:      1.0,
		},
	}
}

// LoadCoefficients reads a coefficient table from a YAML file.
func LoadCoefficients(path string) (*CoefficientTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "winnability: read coefficients %s", path)
	}
	var table CoefficientTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, eris.Wrapf(err, "winnability: parse coefficients %s", path)
	}
	if table.Default == (Coefficients{}) {
		table.Default = DefaultCoefficients().Default
	}
	return &table, nil
}

// For returns the coefficients for an industry, falling back to the default
// variant for unknown industries.
func (t *CoefficientTable) For(industry string) Coefficients {
	if t.Industries != nil {
		if c, ok := t.Industries[strings.ToLower(strings.TrimSpace(industry))]; ok {
			return c
		}
	}
	return t.Default
}
