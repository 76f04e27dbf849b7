package killswitch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyRule configures the kill switch for one piece of app code.
type PolicyRule struct {
	// Contract names the code: a hex address, or an app name the node
	// resolves to its current base ("counter", "vault.apm.eth").
	Contract      string    `yaml:"contract"`
	Action        *Action   `yaml:"action,omitempty"`
	LowestAllowed *Severity `yaml:"lowest_allowed_severity,omitempty"`
	// Severity, when set, is reported to the issues registry.
	Severity *Severity `yaml:"severity,omitempty"`
}

// Policy is the kill switch file applied by the node.
type Policy struct {
	Rules []PolicyRule `yaml:"rules"`
}

// Validate checks that every rule names a contract and sets something.
func (p *Policy) Validate() error {
	for i, r := range p.Rules {
		if r.Contract == "" {
			return fmt.Errorf("rule %d: contract is required", i)
		}
		if r.Action == nil && r.LowestAllowed == nil && r.Severity == nil {
			return fmt.Errorf("rule %d (%s): nothing to apply", i, r.Contract)
		}
	}
	return nil
}

// LoadPolicy reads a policy file and returns it with the SHA-256 of its
// raw bytes. A missing file is an empty policy.
func LoadPolicy(path string) (*Policy, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return &Policy{}, "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("failed to read kill switch policy: %w", err)
	}
	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	p := &Policy{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, "", fmt.Errorf("failed to parse kill switch policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid kill switch policy: %w", err)
	}
	return p, hash, nil
}
