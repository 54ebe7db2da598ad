package scanner

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"MemeCurator/internal/domain"
)

// Request describes one feed to pull candidates from.
type Request struct {
	FeedName string
	Target   string
	Limit    int
}

// Scanner turns one feed into meme candidates.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Candidate, error)
}

// Registry maps feed strategy names to scanners. Names are case-insensitive.
type Registry struct {
	scanners map[string]Scanner
}

func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds a scanner, replacing any earlier one with the same name.
func (r *Registry) Register(s Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[normalize(s.Name())] = s
}

// Resolve looks up the scanner for a feed. An unknown name is a
// configuration error.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if s, ok := r.scanners[normalize(name)]; ok {
		return s, nil
	}
	return nil, domain.NewAdapterError("resolve scanner", domain.KindConfig,
		fmt.Errorf("scanner %q not registered (known: %s)", name, strings.Join(r.Names(), ", ")))
}

// Names lists registered scanners in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
