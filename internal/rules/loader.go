package rules

import (
	"os"

	"gopkg.in/yaml.v3"

	"snowpilot/pkg/errors"
)

type packFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadPack reads an ordered rulepack from a YAML file. File order is
// priority order.
func LoadPack(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRulepackInvalid, "Failed to read rulepack").
			WithContext("path", path)
	}

	var pack packFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRulepackInvalid, "Failed to parse rulepack").
			WithContext("path", path)
	}

	for i := range pack.Rules {
		if err := pack.Rules[i].validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRulepackInvalid, "Invalid rule in pack").
				WithContext("path", path)
		}
	}
	return pack.Rules, nil
}

// BuildChain assembles the full chain: rulepack files first, in the order
// given, then the built-in rules. Every rule is validated and its
// templates compiled.
func BuildChain(packs []string, builtin []Rule) ([]Rule, error) {
	var chain []Rule
	for _, path := range packs {
		rules, err := LoadPack(path)
		if err != nil {
			return nil, err
		}
		chain = append(chain, rules...)
	}
	chain = append(chain, builtin...)

	for i := range chain {
		if err := chain[i].validate(); err != nil {
			return nil, err
		}
		if err := chain[i].compile(); err != nil {
			return nil, err
		}
	}
	return chain, nil
}
