// Package tool implements the Tool Registry (spec.md §4.2): it aggregates
// capability Providers under one namespace, fans out schema fetches
// concurrently with per-provider error isolation, rebuilds a routing cache
// on every fetch, and resolves execute_tool calls through that cache.
//
// Grounded on the teacher's pkg/tool/registry.go (multi-tool dispatch,
// routing map) and pkg/tools/registry.go (provider fan-out), merged into a
// single multi-provider registry per SPEC_FULL.md's component map. The
// teacher's container/mission/sandbox/telemetry/approval concerns live
// instead in pkg/approval and pkg/agentloop, which call this registry
// rather than this registry calling them.
package tool

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/errgroup"
)

// Registry aggregates Providers, serves tool schemas to the LLM client, and
// dispatches execute_tool calls through a routing cache.
type Registry struct {
	mu            sync.RWMutex
	providers     []Provider // registration order, for first-wins dedup
	providerNames map[string]struct{}
	cacheEnabled  bool
	log           zerolog.Logger

	routing      map[string]string // tool name -> provider name
	routingDirty bool
	lastDefs     []ToolDefinition
}

// NewRegistry builds an empty Registry. cacheEnabled controls whether
// get_tool_definitions_for_api attaches a cache-control marker to the last
// tool in the list.
func NewRegistry(cacheEnabled bool, log zerolog.Logger) *Registry {
	return &Registry{
		providerNames: make(map[string]struct{}),
		routing:       make(map[string]string),
		routingDirty:  true,
		cacheEnabled:  cacheEnabled,
		log:           log,
	}
}

// RegisterProvider adds a provider, failing with DuplicateProvider on a
// name collision.
func (r *Registry) RegisterProvider(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.ProviderName()
	if _, exists := r.providerNames[name]; exists {
		return DuplicateProvider(name)
	}
	r.providerNames[name] = struct{}{}
	r.providers = append(r.providers, p)
	r.routingDirty = true
	return nil
}

// GetToolDefinitionsForAPI fans out to all providers concurrently,
// aggregates results with first-registered-wins on name collision
// (duplicates are logged, not propagated), rebuilds the routing cache, and
// attaches a cache-control marker to the last tool when caching is enabled.
func (r *Registry) GetToolDefinitionsForAPI(ctx context.Context) ([]ToolDefinition, error) {
	r.mu.RLock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	type fetch struct {
		provider string
		defs     []ToolDefinition
	}
	results := make([]fetch, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			defs, err := p.GetToolDefinitions(gctx)
			if err != nil {
				// Error isolation: one provider's failure is logged and
				// skipped, never propagated (spec.md §4.2 Concurrency).
				r.log.Warn().Err(err).Str("provider", p.ProviderName()).Msg("tool provider fetch failed")
				return nil
			}
			results[i] = fetch{provider: p.ProviderName(), defs: defs}
			return nil
		})
	}
	// errgroup.WithContext's Wait error is always nil here since every
	// goroutine swallows its own error; call it anyway to join them.
	_ = g.Wait()

	seen := make(map[string]struct{})
	routing := make(map[string]string)
	var ordered []ToolDefinition
	for _, res := range results {
		for _, def := range res.defs {
			if _, dup := seen[def.Name]; dup {
				r.log.Warn().Str("tool", def.Name).Str("provider", res.provider).Msg("duplicate tool name, first registration wins")
				continue
			}
			seen[def.Name] = struct{}{}
			routing[def.Name] = res.provider
			ordered = append(ordered, def)
		}
	}

	if r.cacheEnabled && len(ordered) > 0 {
		last := ordered[len(ordered)-1]
		last.CacheControl = map[string]any{"type": "ephemeral"}
		ordered[len(ordered)-1] = last
	}

	r.mu.Lock()
	r.routing = routing
	r.routingDirty = false
	r.lastDefs = ordered
	r.mu.Unlock()

	return ordered, nil
}

// ExecuteTool resolves name via the routing table and dispatches to its
// owning provider, failing with UnknownTool if the name is unrouted.
// Rebuilds the routing cache transparently if it was marked dirty by a
// provider registration since the last fetch.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	dirty := r.routingDirty
	r.mu.RUnlock()

	if dirty {
		if _, err := r.GetToolDefinitionsForAPI(ctx); err != nil {
			return "", err
		}
	}

	r.mu.RLock()
	providerName, ok := r.routing[name]
	var provider Provider
	if ok {
		for _, p := range r.providers {
			if p.ProviderName() == providerName {
				provider = p
				break
			}
		}
	}
	r.mu.RUnlock()

	if provider == nil {
		return "", UnknownTool(name)
	}
	return provider.ExecuteTool(ctx, name, args)
}

// GetToolNames returns the names currently in the routing table.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routing))
	for name := range r.routing {
		names = append(names, name)
	}
	return names
}

// GetToolCount returns the number of tools in the routing table.
func (r *Registry) GetToolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routing)
}

// RefreshTools marks the routing cache dirty, forcing the next
// ExecuteTool or GetToolDefinitionsForAPI call to re-fan-out to providers.
func (r *Registry) RefreshTools() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routingDirty = true
}

// ValidateSchema compiles def.InputSchema with jsonschema/v6 and reports a
// schema_format error if it is malformed. The Registry and its providers do
// not call it; a caller runs it on a definition before registering it.
func ValidateSchema(def ToolDefinition) error {
	if len(def.InputSchema) == 0 {
		return nil
	}
	doc, err := decodeSchema(def.InputSchema)
	if err != nil {
		return schemaFormatError(def.Name, err)
	}
	compiler := jsonschema.NewCompiler()
	resourceName := "tool://" + def.Name
	if err := compiler.AddResource(resourceName, doc); err != nil {
		return schemaFormatError(def.Name, err)
	}
	if _, err := compiler.Compile(resourceName); err != nil {
		return schemaFormatError(def.Name, err)
	}
	return nil
}
