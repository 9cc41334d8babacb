package platform

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrNotSupported indicates the requested platform is not registered.
var ErrNotSupported = errors.New("platform not supported")

var defaultEndpoints = map[string]string{
	"groq":     "https://api.groq.com/openai/v1/chat/completions",
	"cerebras": "https://api.cerebras.ai/v1/chat/completions",
	"openai":   "https://api.openai.com/v1/chat/completions",
	"nvidia":   "https://integrate.api.nvidia.com/v1/chat/completions",
}

// DefaultEndpoints returns a copy of the built-in platform table.
func DefaultEndpoints() map[string]string {
	out := make(map[string]string, len(defaultEndpoints))
	for id, endpoint := range defaultEndpoints {
		out[id] = endpoint
	}
	return out
}

// Merge returns base overlaid with overrides. Neither input is modified.
func Merge(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for id, endpoint := range base {
		out[id] = endpoint
	}
	for id, endpoint := range overrides {
		out[id] = endpoint
	}
	return out
}

// Endpoint pairs a platform identifier with its chat completions URL.
type Endpoint struct {
	ID  string `json:"id"`
	URL string `json:"endpoint"`
}

// Registry maps platform identifiers to upstream chat completions endpoints.
// It is immutable once constructed and safe for concurrent readers.
type Registry struct {
	endpoints map[string]string
	ids       []string
}

// NewRegistry validates and copies the endpoint table.
func NewRegistry(endpoints map[string]string) (*Registry, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("at least one platform must be registered")
	}

	r := &Registry{
		endpoints: make(map[string]string, len(endpoints)),
		ids:       make([]string, 0, len(endpoints)),
	}

	for id, endpoint := range endpoints {
		if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
			return nil, fmt.Errorf("invalid platform identifier %q", id)
		}

		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("platform %q: parse endpoint: %w", id, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("platform %q: endpoint %q must be an absolute http(s) URL", id, endpoint)
		}

		r.endpoints[id] = endpoint
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)

	return r, nil
}

// Resolve returns the upstream endpoint registered for id.
func (r *Registry) Resolve(id string) (string, error) {
	endpoint, ok := r.endpoints[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotSupported, id)
	}
	return endpoint, nil
}

// Supports reports whether id is registered.
func (r *Registry) Supports(id string) bool {
	_, ok := r.endpoints[id]
	return ok
}

// Platforms returns the registered identifiers in sorted order.
func (r *Registry) Platforms() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Endpoints returns every registered platform in identifier order.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, Endpoint{ID: id, URL: r.endpoints[id]})
	}
	return out
}
