package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/virattt/dexter-sub002/internal/backoff"
)

// Factory lazily constructs a provider Client. Lazy construction is what
// lets each provider read its own API key at first use rather than at
// registry-build time, so ".env" load order never matters (spec §4.1).
type Factory func() (Client, error)

// Registry maps model-name prefixes to provider factories and routes
// unmatched model names to a default provider, exactly as spec §4.1
// describes. It is also the retry/backoff boundary: every Complete/Stream
// call made through a Registry-resolved client is wrapped with the
// 3-attempt, 500ms/1s/2s backoff policy and honors ctx cancellation.
type Registry struct {
	mu       sync.Mutex
	prefixes map[string]Factory
	order    []string // insertion order, for deterministic first-match prefix scanning
	defaultF Factory

	cache map[string]Client
	log   *slog.Logger
}

// NewRegistry creates an empty provider Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		prefixes: make(map[string]Factory),
		cache:    make(map[string]Client),
		log:      logger.With("component", "llm-registry"),
	}
}

// RegisterPrefix associates a model-name prefix (e.g. "claude-", "gpt-",
// "gemini-", "bedrock/") with a provider Factory.
func (r *Registry) RegisterPrefix(prefix string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prefixes[prefix]; !exists {
		r.order = append(r.order, prefix)
	}
	r.prefixes[prefix] = f
}

// SetDefault registers the fallback provider used for unmatched model names.
func (r *Registry) SetDefault(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultF = f
}

// resolve returns the (lazily constructed, cached) Client for a model name.
func (r *Registry) resolve(model string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched string
	for _, prefix := range r.order {
		if strings.HasPrefix(model, prefix) {
			matched = prefix
			break
		}
	}

	cacheKey := matched
	if cacheKey == "" {
		cacheKey = "__default__"
	}
	if c, ok := r.cache[cacheKey]; ok {
		return c, nil
	}

	factory := r.defaultF
	if matched != "" {
		factory = r.prefixes[matched]
	}
	if factory == nil {
		return nil, fmt.Errorf("llm: no provider registered for model %q and no default set", model)
	}
	client, err := factory()
	if err != nil {
		return nil, fmt.Errorf("llm: construct provider for %q: %w", model, err)
	}
	r.cache[cacheKey] = client
	return client, nil
}

// Complete resolves the provider for req.Model and calls Complete with the
// spec's retry policy: up to 3 attempts, 500ms/1s/2s backoff, aborting
// immediately on ctx cancellation (spec §4.1, §5 Timeouts).
func (r *Registry) Complete(ctx context.Context, req Request) (*Response, error) {
	client, err := r.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	result, err := backoff.Retry(ctx, backoff.LLMRetryPolicy(), 3, func(attempt int) (*Response, error) {
		resp, cerr := client.Complete(ctx, req)
		if cerr != nil {
			r.log.Warn("llm completion attempt failed", "model", req.Model, "attempt", attempt, "error", cerr)
		}
		return resp, cerr
	})
	if err != nil {
		if err == backoff.ErrCancelled {
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("llm: completion failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	return result.Value, nil
}

// Stream resolves the provider for req.Model and opens a stream. Unlike
// Complete, the stream itself is not retried once opened (retrying a
// partially-consumed stream would duplicate output); only the initial
// connection attempt is retried.
func (r *Registry) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	client, err := r.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	result, err := backoff.Retry(ctx, backoff.LLMRetryPolicy(), 3, func(attempt int) (<-chan StreamChunk, error) {
		ch, serr := client.Stream(ctx, req)
		if serr != nil {
			r.log.Warn("llm stream open attempt failed", "model", req.Model, "attempt", attempt, "error", serr)
		}
		return ch, serr
	})
	if err != nil {
		if err == backoff.ErrCancelled {
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("llm: stream open failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	return result.Value, nil
}
