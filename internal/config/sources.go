package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// SourceConfig describes one upstream in the catalogue.
type SourceConfig struct {
	Kind    domain.SourceKind `yaml:"-" json:"kind"`
	Enabled bool              `yaml:"enabled" json:"enabled"`
	URL     string            `yaml:"url" json:"url"`

	// FullSnapshot marks sources whose fetch returns every live tender, so
	// rows missing from a fetch may be removed as stale.
	FullSnapshot bool `yaml:"full_snapshot" json:"full_snapshot"`

	// Timeout overrides SOURCE_TIMEOUT for this source.
	Timeout time.Duration `yaml:"-" json:"-"`

	// MaxPages bounds paginated JSON sources. 0 means until exhausted. It is
	// rejected on full-snapshot sources.
	MaxPages int `yaml:"max_pages" json:"max_pages,omitempty"`

	// RequestsPerSecond throttles HTTP sources. 0 means unthrottled.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second,omitempty"`
}

// Catalogue is the ordered set of configured sources.
type Catalogue []SourceConfig

// Get returns the entry for kind.
func (c Catalogue) Get(kind domain.SourceKind) (SourceConfig, bool) {
	for _, sc := range c {
		if sc.Kind == kind {
			return sc, true
		}
	}
	return SourceConfig{}, false
}

// Enabled returns the enabled entries in catalogue order.
func (c Catalogue) Enabled() Catalogue {
	var out Catalogue
	for _, sc := range c {
		if sc.Enabled {
			out = append(out, sc)
		}
	}
	return out
}

// DefaultCatalogue builds the built-in catalogue from the environment-level
// endpoints. Portal sources carry their base URL from domain.Portals.
func DefaultCatalogue(cfg Config) Catalogue {
	cat := Catalogue{
		{Kind: domain.SourceCanadian, Enabled: true, URL: cfg.OpenTenderNoticesURL, FullSnapshot: true},
		{Kind: domain.SourceToronto, Enabled: true, URL: cfg.TorontoAPIURL, FullSnapshot: true},
		{Kind: domain.SourceOntario, Enabled: true, URL: cfg.OntarioPortalURL},
		{Kind: domain.SourceQuebec, Enabled: true, URL: cfg.QuebecAPIURL, FullSnapshot: true, RequestsPerSecond: 2},
	}
	for _, kind := range domain.AllSources {
		if !kind.IsBidsAndTenders() {
			continue
		}
		cat = append(cat, SourceConfig{Kind: kind, Enabled: true, URL: domain.Portals[kind].BaseURL})
	}

	if len(cfg.SourcesEnabled) > 0 {
		allowed := make(map[string]bool, len(cfg.SourcesEnabled))
		for _, name := range cfg.SourcesEnabled {
			allowed[name] = true
		}
		for i := range cat {
			cat[i].Enabled = allowed[string(cat[i].Kind)]
		}
	}
	return cat
}

// sourceOverride mirrors SourceConfig with pointer fields so an entry in the
// file only replaces what it mentions.
type sourceOverride struct {
	Enabled           *bool    `yaml:"enabled"`
	URL               *string  `yaml:"url"`
	FullSnapshot      *bool    `yaml:"full_snapshot"`
	Timeout           *string  `yaml:"timeout"`
	MaxPages          *int     `yaml:"max_pages"`
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
}

type catalogueFile struct {
	Sources map[string]sourceOverride `yaml:"sources"`
}

// LoadCatalogue reads the YAML catalogue at path and layers it over base.
// An empty path returns base unchanged.
//
//	sources:
//	  ontario:
//	    full_snapshot: true
//	  london:
//	    enabled: false
func LoadCatalogue(path string, base Catalogue) (Catalogue, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseCatalogue(data, base)
}

// ParseCatalogue applies YAML overrides to a copy of base.
func ParseCatalogue(data []byte, base Catalogue) (Catalogue, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	out := make(Catalogue, len(base))
	copy(out, base)

	var errs ValidationErrors
	for name, ov := range file.Sources {
		kind, err := domain.ParseSourceKind(name)
		if err != nil {
			errs = append(errs, ValidationError{Field: "sources." + name, Message: err.Error()})
			continue
		}
		idx := -1
		for i := range out {
			if out[i].Kind == kind {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, SourceConfig{Kind: kind})
			idx = len(out) - 1
		}
		sc := &out[idx]

		if ov.Enabled != nil {
			sc.Enabled = *ov.Enabled
		}
		if ov.URL != nil {
			if msg := checkURL(*ov.URL); msg != "" {
				errs = append(errs, ValidationError{Field: "sources." + name + ".url", Message: msg})
			}
			sc.URL = *ov.URL
		}
		if ov.FullSnapshot != nil {
			sc.FullSnapshot = *ov.FullSnapshot
		}
		if ov.Timeout != nil {
			d, err := time.ParseDuration(*ov.Timeout)
			if err != nil || d <= 0 {
				errs = append(errs, ValidationError{Field: "sources." + name + ".timeout", Message: "must be a positive duration"})
			}
			sc.Timeout = d
		}
		if ov.MaxPages != nil {
			if *ov.MaxPages < 0 {
				errs = append(errs, ValidationError{Field: "sources." + name + ".max_pages", Message: "must not be negative"})
			}
			sc.MaxPages = *ov.MaxPages
		}
		if ov.RequestsPerSecond != nil {
			if *ov.RequestsPerSecond < 0 {
				errs = append(errs, ValidationError{Field: "sources." + name + ".requests_per_second", Message: "must not be negative"})
			}
			sc.RequestsPerSecond = *ov.RequestsPerSecond
		}
	}

	// A page cap truncates the fetch, and stale removal would then delete
	// every live tender past the cap.
	for _, sc := range out {
		if sc.FullSnapshot && sc.MaxPages > 0 {
			errs = append(errs, ValidationError{
				Field:   "sources." + string(sc.Kind) + ".max_pages",
				Message: "cannot be combined with full_snapshot",
			})
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}
