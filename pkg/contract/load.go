package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Load reads, parses and validates a contract file.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read", Cause: err}
	}

	c, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Path = path
		}
		return nil, err
	}
	return c, nil
}

// Parse decodes and validates a contract document. Identifiers and
// timestamps missing from the document are filled in.
func Parse(data []byte) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &LoadError{Reason: "parse", Cause: err}
	}
	if err := c.Validate(); err != nil {
		return nil, &LoadError{Reason: "validate", Cause: err}
	}
	c.EnsureDefaults(time.Now().UTC())
	return &c, nil
}

// Save writes c as indented JSON, replacing any existing file.
func Save(path string, c *Contract) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode contract: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create contract directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write contract %s: %w", path, err)
	}
	return nil
}

// LoadFolder loads every *.json file directly inside dir, in name order.
// Contracts whose application name differs from appName are skipped;
// an empty appName keeps every contract. Files that fail to load are
// reported individually and do not stop the scan.
func LoadFolder(dir, appName string) ([]*Contract, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{&LoadError{Path: dir, Reason: "read", Cause: err}}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var (
		contracts []*Contract
		errs      []error
	)
	for _, name := range names {
		c, err := Load(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if appName != "" && c.ApplicationName != appName {
			continue
		}
		contracts = append(contracts, c)
	}
	return contracts, errs
}

// New builds a contract from interactions, assigning identifiers and
// timestamps. It does not validate; callers that accept user input should
// call Validate.
func New(appName string, interactions ...Interaction) *Contract {
	c := &Contract{
		ApplicationName: appName,
		Interactions:    append([]Interaction(nil), interactions...),
	}
	c.EnsureDefaults(time.Now().UTC())
	return c
}

// FromConversations adapts raw prompt/response pairs into a contract.
func FromConversations(appName string, conversations []Conversation) (*Contract, error) {
	if len(conversations) == 0 {
		return nil, &LoadError{Reason: "validate", Cause: ErrNoInteractions}
	}

	interactions := make([]Interaction, len(conversations))
	for i, conv := range conversations {
		interactions[i] = Interaction{
			InputText:  conv.UserInput,
			OutputText: conv.Response,
		}
	}

	c := New(appName, interactions...)
	if err := c.Validate(); err != nil {
		return nil, &LoadError{Reason: "validate", Cause: err}
	}
	return c, nil
}

// Consolidate merges the interactions of several contracts of the same
// application into one contract. Interactions keep their identifiers and
// follow the order of contracts. Context keys are merged with the earliest
// contract winning on conflicts, and the source contract IDs are recorded
// in Context["source_contracts"].
func Consolidate(appName string, contracts []*Contract) (*Contract, error) {
	if len(contracts) == 0 {
		return nil, &LoadError{Reason: "validate", Cause: fmt.Errorf("no contracts for application %q: %w", appName, ErrNoInteractions)}
	}

	var (
		interactions []Interaction
		sources      = make([]string, 0, len(contracts))
		values       = make(map[string]any)
	)
	for _, c := range contracts {
		interactions = append(interactions, c.Interactions...)
		sources = append(sources, c.ID.String())
		for k, v := range c.Context {
			if _, set := values[k]; !set {
				values[k] = v
			}
		}
	}
	values["source_contracts"] = sources

	merged := &Contract{
		ID:                uuid.New(),
		ApplicationName:   appName,
		ModelInfo:         contracts[0].ModelInfo,
		Interactions:      interactions,
		Context:           values,
		ComplianceContext: contracts[0].ComplianceContext,
	}
	merged.EnsureDefaults(time.Now().UTC())
	return merged, nil
}
