package categorizer

import (
	"fmt"
	"path/filepath"
	"strings"

	kJson "github.com/knadh/koanf/parsers/json"
	kYaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	table := []struct {
		category string
		keywords []string
	}{
		{"AI Services", []string{"anthropic", "openai", "chatgpt", "claude"}},
		{"Cloud Services", []string{"aws", "amazon web services", "netlify", "railway", "pinecone"}},
		{"Web Services", []string{"wix", "squarespace"}},
		{"Entertainment", []string{"steam", "netflix", "spotify"}},
		{"Health & Fitness", []string{"fitness", "gym", "republic fitness"}},
		{"Insurance", []string{"insurance"}},
		{"Services", []string{"laundry", "rinse"}},
		{"Business Services", []string{"corporate filings"}},
		{"Transportation", []string{"parking", "uber", "lyft"}},
	}

	var rules []Rule
	for _, group := range table {
		for _, kw := range group.keywords {
			rules = append(rules, Rule{Keyword: kw, Category: group.category})
		}
	}
	return rules
}

// rulesFile is the on-disk shape of a rules file.
type rulesFile struct {
	Rules []Rule `koanf:"rules"`
}

// LoadRules reads an ordered rule list from a JSON or YAML file.
//
//	rules:
//	  - keyword: trader joe
//	    category: Groceries
func LoadRules(path string) ([]Rule, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = kJson.Parser()
	case ".yaml", ".yml":
		parser = kYaml.Parser()
	default:
		return nil, fmt.Errorf("unsupported rules file type %q", filepath.Ext(path))
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading rules file: %w", err)
	}

	var rf rulesFile
	if err := k.UnmarshalWithConf("", &rf, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	for i, r := range rf.Rules {
		if strings.TrimSpace(r.Keyword) == "" {
			return nil, fmt.Errorf("rule %d: keyword is required", i+1)
		}
		if strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("rule %d (%q): category is required", i+1, r.Keyword)
		}
	}
	return rf.Rules, nil
}
