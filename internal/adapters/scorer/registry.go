package scorer

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/moderator/internal/domain/model"
)

const (
	defaultCacheSize = 256
	defaultTimeout   = 10 * time.Second
)

// Factory builds the shim for a scorer.
type Factory func(s model.Scorer) (Shim, error)

// Registry hands out one cached shim per scorer id.
type Registry struct {
	mu           sync.Mutex
	cache        *lru.Cache[string, Shim]
	cacheSize    int
	client       *http.Client
	timeout      time.Duration
	callbackBase string
	ingester     Ingester
	factory      Factory
}

// Option configures a Registry.
type Option func(*Registry)

// WithCacheSize bounds the number of cached shims.
func WithCacheSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

// WithHTTPClient replaces the pooled HTTP client used by shims.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCallbackBase sets the public base URL proxies call back to.
func WithCallbackBase(base string) Option {
	return func(r *Registry) { r.callbackBase = base }
}

// WithFactory overrides how shims are built.
func WithFactory(f Factory) Option {
	return func(r *Registry) {
		if f != nil {
			r.factory = f
		}
	}
}

// NewRegistry creates a registry whose shims deliver scores to ingester.
func NewRegistry(ingester Ingester, opts ...Option) (*Registry, error) {
	r := &Registry{
		cacheSize: defaultCacheSize,
		timeout:   defaultTimeout,
		ingester:  ingester,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = cleanhttp.DefaultPooledClient()
		r.client.Timeout = r.timeout
	}
	if r.factory == nil {
		r.factory = r.build
	}
	cache, err := lru.New[string, Shim](r.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create shim cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Shim returns the cached shim for s, building it on first use.
func (r *Registry) Shim(s model.Scorer) (Shim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if shim, ok := r.cache.Get(s.ID); ok {
		return shim, nil
	}
	shim, err := r.factory(s)
	if err != nil {
		return nil, err
	}
	r.cache.Add(s.ID, shim)
	return shim, nil
}

// Invalidate drops the cached shim of scorerID, e.g. after its
// configuration changed.
func (r *Registry) Invalidate(scorerID string) {
	r.cache.Remove(scorerID)
}

// Len returns the number of cached shims.
func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) build(s model.Scorer) (Shim, error) {
	endpoint, err := ParseEndpoint(s)
	if err != nil {
		return nil, err
	}
	switch ep := endpoint.(type) {
	case APIEndpoint:
		return NewAPIShim(s.ID, ep, r.client, r.ingester), nil
	case ProxyEndpoint:
		return NewProxyShim(s.ID, ep, r.client, r.ingester, r.callbackBase), nil
	default:
		return nil, fmt.Errorf("%w: scorer %s endpoint type %q", ErrConfiguration, s.ID, endpoint.endpointType())
	}
}
