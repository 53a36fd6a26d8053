package core

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/EmundoT/vendor-qc/internal/types"
)

//go:embed schema/policy.schema.json
var policySchemaJSON []byte

const policySchemaID = "inmemory://policy.schema.json"

// Dummy substitutions used to check that templates compile.
var dummySubstitutions = map[string]string{
	PlaceholderSourceRoot: "test_source",
	PlaceholderTargetRoot: "test_target",
	PlaceholderToolNumber: "T001",
	PlaceholderToolColumn: "TestProject",
}

// PolicyLookup is the outcome of resolving a vendor key.
type PolicyLookup int

// PolicyLookup values.
const (
	PolicyFound PolicyLookup = iota
	PolicyFellBackToDefault
	PolicyNotFound
)

func (l PolicyLookup) String() string {
	switch l {
	case PolicyFound:
		return "found"
	case PolicyFellBackToDefault:
		return "default"
	default:
		return "not_found"
	}
}

// PolicyStoreInterface defines the contract for vendor policy access.
type PolicyStoreInterface interface {
	// Load parses and validates the document. Every vendor is checked eagerly;
	// any problem is returned as *ConfigurationError. A loaded store is not re-read
	// until Invalidate.
	Load() error
	// Validate re-checks one vendor section, including template compilation.
	Validate(vendorKey string) (bool, string)
	// Policy resolves a vendor key, honouring fail_on_unknown_vendor and default_vendor.
	Policy(vendorKey string) (types.VendorPolicy, PolicyLookup)
	Vendors() []string
	Paths() types.PathsConfig
	Invalidate()
	Path() string
}

// Compile-time interface satisfaction check for PolicyStore.
var _ PolicyStoreInterface = (*PolicyStore)(nil)

// PolicyStore loads the vendor policy document from disk. It is read-only after
// Load; Invalidate forces the next Load to re-read the file.
type PolicyStore struct {
	store    *YAMLStore[types.PolicyDocument]
	patterns *PatternCache

	mu       sync.RWMutex
	doc      *types.PolicyDocument
	policies map[string]types.VendorPolicy
}

// NewPolicyStore creates a store for the document at path. patterns, when
// non-nil, is reset on Invalidate.
func NewPolicyStore(path string, patterns *PatternCache) *PolicyStore {
	return &PolicyStore{
		store:    NewYAMLStore[types.PolicyDocument](path, false),
		patterns: patterns,
	}
}

// Path returns the document path.
func (s *PolicyStore) Path() string {
	return s.store.Path()
}

// Load implements PolicyStoreInterface.
func (s *PolicyStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != nil {
		return nil
	}

	doc, policies, err := s.read()
	if err != nil {
		return err
	}
	s.doc = doc
	s.policies = policies
	return nil
}

func (s *PolicyStore) read() (*types.PolicyDocument, map[string]types.VendorPolicy, error) {
	path := s.store.Path()

	raw, err := s.store.ReadBytes()
	if err != nil {
		if isNotExist(err) {
			return nil, nil, NewConfigurationError(path, "", "Configuration file not found", nil)
		}
		return nil, nil, NewConfigurationError(path, "", "cannot read configuration", err)
	}

	var doc types.PolicyDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, NewConfigurationError(path, "", "invalid document", err)
	}

	if msg := validateDocumentStructure(&doc); msg != "" {
		return nil, nil, NewConfigurationError(path, "", msg, nil)
	}

	vendors, err := normalizeVendorKeys(doc.Vendors)
	if err != nil {
		return nil, nil, NewConfigurationError(path, "", err.Error(), nil)
	}
	doc.Vendors = vendors

	keys := sortedKeys(vendors)
	for _, key := range keys {
		if ok, msg := validateVendorEntry(key, vendors[key]); !ok {
			return nil, nil, NewConfigurationError(path, key, msg, nil)
		}
	}

	if err := validateAgainstSchema(raw); err != nil {
		return nil, nil, NewConfigurationError(path, "", "schema validation failed", err)
	}

	if opts := doc.Options; opts != nil && opts.DefaultVendor != "" {
		opts.DefaultVendor = strings.ToLower(opts.DefaultVendor)
		if _, ok := vendors[opts.DefaultVendor]; !ok {
			return nil, nil, NewConfigurationError(path, "",
				fmt.Sprintf("default_vendor '%s' is not a configured vendor", opts.DefaultVendor), nil)
		}
	}

	policies := make(map[string]types.VendorPolicy, len(vendors))
	for _, key := range keys {
		policies[key] = types.PolicyFromEntry(key, vendors[key])
	}
	return &doc, policies, nil
}

// Validate implements PolicyStoreInterface.
func (s *PolicyStore) Validate(vendorKey string) (bool, string) {
	if err := s.Load(); err != nil {
		return false, err.Error()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToLower(vendorKey)
	entry, ok := s.doc.Vendors[key]
	if !ok {
		return false, fmt.Sprintf("Vendor '%s' not found in configuration", vendorKey)
	}
	return validateVendorEntry(key, entry)
}

// Policy implements PolicyStoreInterface.
func (s *PolicyStore) Policy(vendorKey string) (types.VendorPolicy, PolicyLookup) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return types.VendorPolicy{}, PolicyNotFound
	}
	if p, ok := s.policies[strings.ToLower(vendorKey)]; ok {
		return p, PolicyFound
	}
	if s.failOnUnknownLocked() {
		return types.VendorPolicy{}, PolicyNotFound
	}
	if def := s.doc.Options.DefaultVendor; def != "" {
		return s.policies[def], PolicyFellBackToDefault
	}
	return types.VendorPolicy{}, PolicyNotFound
}

// FailOnUnknownVendor reports the effective fail_on_unknown_vendor option (default true).
func (s *PolicyStore) FailOnUnknownVendor() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failOnUnknownLocked()
}

func (s *PolicyStore) failOnUnknownLocked() bool {
	if s.doc == nil || s.doc.Options == nil || s.doc.Options.FailOnUnknownVendor == nil {
		return true
	}
	return *s.doc.Options.FailOnUnknownVendor
}

// Vendors returns the configured vendor keys, sorted.
func (s *PolicyStore) Vendors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}
	return sortedKeys(s.doc.Vendors)
}

// Paths returns the global archive roots.
func (s *PolicyStore) Paths() types.PathsConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil || s.doc.Paths == nil {
		return types.PathsConfig{}
	}
	return *s.doc.Paths
}

// Invalidate drops the cached document and compiled patterns.
func (s *PolicyStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = nil
	s.policies = nil
	if s.patterns != nil {
		s.patterns.Reset()
	}
}

func validateDocumentStructure(doc *types.PolicyDocument) string {
	if doc.Paths == nil {
		return "Configuration missing required 'paths' section"
	}
	if doc.Vendors == nil {
		return "Configuration missing required 'vendors' section"
	}
	if doc.Paths.SourceRoot == "" {
		return "Path 'source_root' must be a non-empty string"
	}
	if doc.Paths.TargetRoot == "" {
		return "Path 'target_root' must be a non-empty string"
	}
	if len(doc.Vendors) == 0 {
		return "Vendors section must be a non-empty dictionary"
	}
	return ""
}

func normalizeVendorKeys(in map[string]*types.VendorEntry) (map[string]*types.VendorEntry, error) {
	out := make(map[string]*types.VendorEntry, len(in))
	for k, v := range in {
		key := strings.ToLower(k)
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("duplicate vendor key '%s' (keys are case-insensitive)", key)
		}
		out[key] = v
	}
	return out, nil
}

func validateVendorEntry(key string, e *types.VendorEntry) (bool, string) {
	if e == nil || e.ArchiveConfig == nil {
		return false, fmt.Sprintf("Missing required section 'archive_config' for vendor '%s'", key)
	}
	if e.RequiredPatterns == nil {
		return false, fmt.Sprintf("Missing required section 'required_patterns' for vendor '%s'", key)
	}
	if e.BypassRules == nil {
		return false, fmt.Sprintf("Missing required section 'bypass_rules' for vendor '%s'", key)
	}

	ac := e.ArchiveConfig
	switch {
	case ac.SourceArchiveRegex == "":
		return false, fmt.Sprintf("Missing required field 'source_archive_regex' in archive_config for vendor '%s'", key)
	case ac.TargetArchiveRegex == "":
		return false, fmt.Sprintf("Missing required field 'target_archive_regex' in archive_config for vendor '%s'", key)
	case ac.ConsistencyCheck == nil:
		return false, fmt.Sprintf("Missing required field 'consistency_check' in archive_config for vendor '%s'", key)
	}

	cc := ac.ConsistencyCheck
	if cc.Enabled == nil || (*cc.Enabled && strings.TrimSpace(cc.FileExtension) == "") {
		return false, fmt.Sprintf("Invalid consistency_check configuration for vendor '%s'", key)
	}

	for _, tmpl := range []string{ac.SourceArchiveRegex, ac.TargetArchiveRegex} {
		if _, err := regexp.Compile(Substitute(tmpl, dummySubstitutions)); err != nil {
			return false, fmt.Sprintf("Invalid regex pattern for vendor '%s': %v", key, err)
		}
	}

	if len(e.RequiredPatterns) == 0 {
		return false, fmt.Sprintf("required_patterns must be a non-empty list for vendor '%s'", key)
	}
	for _, p := range e.RequiredPatterns {
		if _, err := regexp.Compile(Substitute(p, dummySubstitutions)); err != nil {
			return false, fmt.Sprintf("Invalid required pattern '%s' for vendor '%s': %v", p, key, err)
		}
	}

	if e.BypassRules.TechnologyThreshold == nil || e.BypassRules.BypassPatterns == nil {
		return false, fmt.Sprintf("Invalid bypass_rules configuration for vendor '%s'", key)
	}

	return true, "Configuration is valid"
}

// validateAgainstSchema checks shape constraints the typed decode cannot see,
// such as unknown keys and non-string pattern entries.
func validateAgainstSchema(raw []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(policySchemaID, bytes.NewReader(policySchemaJSON)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(policySchemaID)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}
	var payload any
	if err := json.Unmarshal(asJSON, &payload); err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}
	return compiled.Validate(payload)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
