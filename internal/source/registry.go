package source

import (
	"fmt"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/config"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// Settings carries the process-wide knobs shared by every adapter.
type Settings struct {
	UserAgent    string
	HTTPTimeout  time.Duration
	DownloadDir  string
	DownloadWait time.Duration
	Browser      BrowserOptions
}

// SettingsFromConfig derives adapter settings from the environment config.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		UserAgent:    cfg.UserAgent,
		HTTPTimeout:  cfg.SourceTimeout,
		DownloadDir:  cfg.DownloadDir,
		DownloadWait: cfg.DownloadWait,
		Browser: BrowserOptions{
			ExecPath: cfg.ChromePath,
			Headed:   cfg.BrowserHeaded,
		},
	}
}

// New builds the adapter for one catalogue entry.
func New(sc config.SourceConfig, s Settings) (Adapter, error) {
	opts := Options{
		URL:               sc.URL,
		UserAgent:         s.UserAgent,
		Timeout:           s.HTTPTimeout,
		RequestsPerSecond: sc.RequestsPerSecond,
		MaxPages:          sc.MaxPages,
	}
	if sc.Timeout > 0 {
		opts.Timeout = sc.Timeout
	}

	switch {
	case sc.Kind == domain.SourceCanadian:
		return NewCSVAdapter(sc.Kind, opts)
	case sc.Kind == domain.SourceToronto:
		return NewTorontoAdapter(opts, s.Browser)
	case sc.Kind == domain.SourceOntario:
		return NewOntarioAdapter(opts, s.Browser, s.DownloadDir, s.DownloadWait)
	case sc.Kind == domain.SourceQuebec:
		return NewQuebecAdapter(opts)
	case sc.Kind.IsBidsAndTenders():
		return NewBidsAndTendersAdapter(sc.Kind, opts, s.Browser)
	}
	return nil, fmt.Errorf("no adapter for source %q", sc.Kind)
}

// Registry holds the adapters of the enabled catalogue entries.
type Registry struct {
	adapters map[domain.SourceKind]Adapter
	order    []domain.SourceKind
}

// NewRegistry builds adapters for every enabled catalogue entry.
func NewRegistry(cat config.Catalogue, s Settings) (*Registry, error) {
	r := &Registry{adapters: make(map[domain.SourceKind]Adapter)}
	for _, sc := range cat.Enabled() {
		a, err := New(sc, s)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Kind, err)
		}
		r.Add(a)
	}
	return r, nil
}

// Add registers or replaces an adapter.
func (r *Registry) Add(a Adapter) {
	if r.adapters == nil {
		r.adapters = make(map[domain.SourceKind]Adapter)
	}
	if _, exists := r.adapters[a.Kind()]; !exists {
		r.order = append(r.order, a.Kind())
	}
	r.adapters[a.Kind()] = a
}

// Get returns the adapter for kind.
func (r *Registry) Get(kind domain.SourceKind) (Adapter, bool) {
	a, ok := r.adapters[kind]
	return a, ok
}

// Kinds returns the registered sources in registration order.
func (r *Registry) Kinds() []domain.SourceKind {
	out := make([]domain.SourceKind, len(r.order))
	copy(out, r.order)
	return out
}
