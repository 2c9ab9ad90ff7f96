package research

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/index"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/loader"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/config"
)

// snapshot is never modified after it is published.
type snapshot struct {
	index     *index.Index
	documents []string
	skipped   []loader.Skipped
	sources   []sourceSlot
	builtAt   time.Time
	version   int64
}

type sourceSlot struct {
	name     string
	cfg      config.ProviderConfig
	acquirer *sources.Acquirer
}

// plan resolves the per-request overrides against the snapshot defaults.
func (s *snapshot) plan(req *Request, topK int) evidence.Plan {
	plan := evidence.Plan{TopK: topK}
	useLocal := req.UseLocal == nil || *req.UseLocal
	if useLocal && s.index.Len() > 0 {
		plan.Local = s.index
	}
	for _, src := range s.sources {
		enabled, maxItems := src.cfg.Enabled, src.cfg.MaxItems
		on, n := req.override(src.name)
		if on != nil {
			enabled = *on
		}
		if n != nil {
			maxItems = *n
		}
		if !enabled {
			continue
		}
		plan.Web = append(plan.Web, evidence.WebRequest{Source: src.acquirer, MaxItems: maxItems})
	}
	return plan
}

// Info describes a published snapshot.
type Info struct {
	Initialized bool             `json:"initialized"`
	Version     int64            `json:"version"`
	Documents   []string         `json:"documents"`
	Chunks      int              `json:"chunks"`
	Skipped     []loader.Skipped `json:"skipped,omitempty"`
	Providers   []ProviderInfo   `json:"providers"`
	FilesDir    string           `json:"files_dir"`
	BuiltAt     time.Time        `json:"built_at"`
}

type ProviderInfo struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	MaxItems int    `json:"max_items"`
}

func (s *snapshot) info(filesDir string) Info {
	docs := s.documents
	if docs == nil {
		docs = []string{}
	}
	info := Info{
		Initialized: true,
		Version:     s.version,
		Documents:   docs,
		Chunks:      s.index.Len(),
		Skipped:     s.skipped,
		Providers:   make([]ProviderInfo, 0, len(s.sources)),
		FilesDir:    filesDir,
		BuiltAt:     s.builtAt,
	}
	for _, src := range s.sources {
		info.Providers = append(info.Providers, ProviderInfo{Name: src.name, Enabled: src.cfg.Enabled, MaxItems: src.cfg.MaxItems})
	}
	return info
}
