package types

// PolicyDocument is the on-disk vendor policy configuration.
// Pointer fields distinguish a missing section from an empty one so that
// structural validation can report exactly what is absent.
type PolicyDocument struct {
	Paths   *PathsConfig            `yaml:"paths" json:"paths"`
	Vendors map[string]*VendorEntry `yaml:"vendors" json:"vendors"`
	Options *PolicyOptions          `yaml:"options,omitempty" json:"options,omitempty"`
}

// PathsConfig holds the global archive roots.
type PathsConfig struct {
	SourceRoot string `yaml:"source_root" json:"source_root"`
	TargetRoot string `yaml:"target_root" json:"target_root"`
}

// PolicyOptions controls how vendor keys without a section are treated.
type PolicyOptions struct {
	FailOnUnknownVendor *bool  `yaml:"fail_on_unknown_vendor,omitempty" json:"fail_on_unknown_vendor,omitempty"`
	DefaultVendor       string `yaml:"default_vendor,omitempty" json:"default_vendor,omitempty"`
}

// VendorEntry is one vendor section of the policy document.
type VendorEntry struct {
	ArchiveConfig    *ArchiveConfig `yaml:"archive_config" json:"archive_config"`
	RequiredPatterns []string       `yaml:"required_patterns" json:"required_patterns"`
	BypassRules      *BypassRules   `yaml:"bypass_rules" json:"bypass_rules"`
}

// ArchiveConfig describes how a vendor's archives are discovered and compared.
type ArchiveConfig struct {
	SourceArchiveRegex string            `yaml:"source_archive_regex" json:"source_archive_regex"`
	TargetArchiveRegex string            `yaml:"target_archive_regex" json:"target_archive_regex"`
	ConsistencyCheck   *ConsistencyCheck `yaml:"consistency_check" json:"consistency_check"`
}

// ConsistencyCheck gates the source/target byte comparison.
type ConsistencyCheck struct {
	Enabled       *bool  `yaml:"enabled" json:"enabled"`
	FileExtension string `yaml:"file_extension" json:"file_extension"`
}

// BypassRules exempts patterns for high technology values.
type BypassRules struct {
	TechnologyThreshold *int     `yaml:"technology_threshold" json:"technology_threshold"`
	BypassPatterns      []string `yaml:"bypass_patterns" json:"bypass_patterns"`
}

// VendorPolicy is the validated, immutable rule set for one vendor.
type VendorPolicy struct {
	VendorKey            string   `json:"vendor_key"`
	SourceArchiveRegex   string   `json:"source_archive_regex"`
	TargetArchiveRegex   string   `json:"target_archive_regex"`
	ConsistencyEnabled   bool     `json:"consistency_enabled"`
	ConsistencyExtension string   `json:"consistency_extension"`
	RequiredPatterns     []string `json:"required_patterns"`
	BypassThreshold      int      `json:"bypass_threshold"`
	BypassSuffixes       []string `json:"bypass_suffixes"`
}

// PolicyFromEntry converts a structurally valid vendor section into a VendorPolicy.
// Callers must validate the entry first; nil sections yield zero values.
func PolicyFromEntry(key string, e *VendorEntry) VendorPolicy {
	p := VendorPolicy{VendorKey: key}
	if e == nil {
		return p
	}
	p.RequiredPatterns = append([]string(nil), e.RequiredPatterns...)
	if ac := e.ArchiveConfig; ac != nil {
		p.SourceArchiveRegex = ac.SourceArchiveRegex
		p.TargetArchiveRegex = ac.TargetArchiveRegex
		if cc := ac.ConsistencyCheck; cc != nil {
			p.ConsistencyEnabled = cc.Enabled != nil && *cc.Enabled
			p.ConsistencyExtension = cc.FileExtension
		}
	}
	if br := e.BypassRules; br != nil {
		if br.TechnologyThreshold != nil {
			p.BypassThreshold = *br.TechnologyThreshold
		}
		p.BypassSuffixes = append([]string(nil), br.BypassPatterns...)
	}
	return p
}
