package governance

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"deckpilot/internal/config"
	"deckpilot/internal/deck"
)

// Policy is the versioned list of governed patterns plus the approval channel.
// A pattern is KEYWORD or KEYWORD.FIELD; either part may use '*' globs.
type Policy struct {
	Version  string         `yaml:"version" json:"version"`
	Governed []string       `yaml:"governed" json:"governed"`
	Approval ApprovalPolicy `yaml:"approval" json:"approval"`
}

// ApprovalPolicy describes how approval is solicited.
type ApprovalPolicy struct {
	Channel string `yaml:"channel" json:"channel"` // none, memory
	Timeout string `yaml:"timeout" json:"timeout"`
}

// HasChannel reports whether governed changes can be sent for approval.
func (p Policy) HasChannel() bool {
	c := strings.ToLower(strings.TrimSpace(p.Approval.Channel))
	return c != "" && c != "none"
}

// ApprovalTimeout returns the approval wait, defaulting to five minutes.
func (p Policy) ApprovalTimeout() time.Duration {
	d, err := time.ParseDuration(p.Approval.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// PolicyFromConfig builds the policy from configuration. A policy file, when
// configured, replaces the inline governed list and version; the approval
// channel from the file wins only when it sets one.
func PolicyFromConfig(cfg config.GovernanceConfig) (Policy, error) {
	p := Policy{
		Version:  cfg.PolicyVersion,
		Governed: append([]string(nil), cfg.Governed...),
		Approval: ApprovalPolicy{Channel: cfg.ApprovalChannel, Timeout: cfg.ApprovalTimeout},
	}
	if cfg.PolicyPath == "" {
		return p, p.Validate()
	}
	file, err := LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return Policy{}, err
	}
	p.Version = file.Version
	p.Governed = file.Governed
	if file.Approval.Channel != "" {
		p.Approval.Channel = file.Approval.Channel
	}
	if file.Approval.Timeout != "" {
		p.Approval.Timeout = file.Approval.Timeout
	}
	return p, p.Validate()
}

// LoadPolicy reads a YAML policy file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return p, p.Validate()
}

// Validate checks the version and that every pattern matches the grammar.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.Version) == "" {
		return fmt.Errorf("policy version is required")
	}
	for _, pattern := range p.Governed {
		kws, fields, err := expand(pattern)
		if err != nil {
			return err
		}
		if len(kws) == 0 && len(fields) == 0 {
			return fmt.Errorf("governed pattern %q matches no keyword", pattern)
		}
	}
	return nil
}

type keywordField struct {
	Keyword string
	Field   string
}

// expand resolves one pattern against the keyword catalog into governed
// keywords or governed keyword fields.
func expand(pattern string) ([]string, []keywordField, error) {
	pattern = strings.ToUpper(strings.TrimSpace(pattern))
	kwPattern, fieldPattern, hasField := strings.Cut(pattern, ".")
	if kwPattern == "" || (hasField && fieldPattern == "") {
		return nil, nil, fmt.Errorf("malformed governed pattern %q", pattern)
	}

	var keywords []string
	var fields []keywordField
	for _, name := range deck.Keywords() {
		ok, err := path.Match(kwPattern, name)
		if err != nil {
			return nil, nil, fmt.Errorf("governed pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		if !hasField {
			keywords = append(keywords, name)
			continue
		}
		def, _ := deck.Lookup(name)
		for _, f := range def.Fields {
			if match, _ := path.Match(fieldPattern, f.Name); match {
				fields = append(fields, keywordField{Keyword: name, Field: f.Name})
			}
		}
	}
	return keywords, fields, nil
}

// Expanded returns every concrete token the policy governs, sorted.
func (p Policy) Expanded() []string {
	seen := make(map[string]bool)
	for _, pattern := range p.Governed {
		kws, fields, err := expand(pattern)
		if err != nil {
			continue
		}
		for _, k := range kws {
			seen[k] = true
		}
		for _, f := range fields {
			seen[f.Keyword+"."+f.Field] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
