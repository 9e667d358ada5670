package mlservice

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var taxonomyYAML []byte

type taxonomyRule struct {
	Label      string   `yaml:"label"`
	Confidence float64  `yaml:"confidence"`
	Keywords   []string `yaml:"keywords"`
}

type taxonomy struct {
	Default struct {
		Label      string  `yaml:"label"`
		Confidence float64 `yaml:"confidence"`
	} `yaml:"default"`
	Rules []taxonomyRule `yaml:"rules"`
}

func loadTaxonomy() taxonomy {
	tax, err := parseTaxonomy(taxonomyYAML)
	if err != nil {
		// The file is embedded at build time; a parse failure is a
		// build defect, not a runtime condition.
		panic(err)
	}
	return tax
}

func parseTaxonomy(raw []byte) (taxonomy, error) {
	var tax taxonomy
	if err := yaml.Unmarshal(raw, &tax); err != nil {
		return taxonomy{}, fmt.Errorf("parse taxonomy: %w", err)
	}
	if tax.Default.Label == "" || len(tax.Rules) == 0 {
		return taxonomy{}, fmt.Errorf("parse taxonomy: missing default label or rules")
	}
	return tax, nil
}
