package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/driftloop/agentcore/pkg/agentcore/errs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name     string
	defs     []ToolDefinition
	fetchErr error
	result   string
	execErr  error
}

func (s *stubProvider) ProviderName() string { return s.name }

func (s *stubProvider) GetToolDefinitions(ctx context.Context) ([]ToolDefinition, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.defs, nil
}

func (s *stubProvider) ExecuteTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if s.execErr != nil {
		return "", s.execErr
	}
	return s.result, nil
}

func TestRegisterProviderRejectsDuplicateName(t *testing.T) {
	r := NewRegistry(false, zerolog.Nop())
	require.NoError(t, r.RegisterProvider(&stubProvider{name: "mcp-a"}))

	err := r.RegisterProvider(&stubProvider{name: "mcp-a"})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvariantViolation, errs.KindOf(err))
}

func TestGetToolDefinitionsForAPIAggregatesAndDedups(t *testing.T) {
	r := NewRegistry(false, zerolog.Nop())
	require.NoError(t, r.RegisterProvider(&stubProvider{
		name: "a",
		defs: []ToolDefinition{{Name: "search"}, {Name: "shared"}},
	}))
	require.NoError(t, r.RegisterProvider(&stubProvider{
		name: "b",
		defs: []ToolDefinition{{Name: "shared"}, {Name: "fetch"}},
	}))

	defs, err := r.GetToolDefinitionsForAPI(context.Background())
	require.NoError(t, err)
	assert.Len(t, defs, 3) // "shared" deduped, first registration wins

	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
	}
	assert.True(t, names["search"])
	assert.True(t, names["shared"])
	assert.True(t, names["fetch"])
}

func TestGetToolDefinitionsForAPIIsolatesProviderErrors(t *testing.T) {
	r := NewRegistry(false, zerolog.Nop())
	require.NoError(t, r.RegisterProvider(&stubProvider{name: "ok", defs: []ToolDefinition{{Name: "good"}}}))
	require.NoError(t, r.RegisterProvider(&stubProvider{name: "broken", fetchErr: errors.New("boom")}))

	defs, err := r.GetToolDefinitionsForAPI(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "good", defs[0].Name)
}

func TestGetToolDefinitionsForAPIAttachesCacheControlToLastToolOnly(t *testing.T) {
	r := NewRegistry(true, zerolog.Nop())
	require.NoError(t, r.RegisterProvider(&stubProvider{
		name: "a",
		defs: []ToolDefinition{{Name: "one"}, {Name: "two"}, {Name: "three"}},
	}))

	defs, err := r.GetToolDefinitionsForAPI(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Nil(t, defs[0].CacheControl)
	assert.Nil(t, defs[1].CacheControl)
	assert.NotNil(t, defs[2].CacheControl)
}

func TestExecuteToolResolvesViaRoutingTable(t *testing.T) {
	r := NewRegistry(false, zerolog.Nop())
	require.NoError(t, r.RegisterProvider(&stubProvider{
		name:   "a",
		defs:   []ToolDefinition{{Name: "search"}},
		result: "ok result",
	}))

	_, err := r.GetToolDefinitionsForAPI(context.Background())
	require.NoError(t, err)

	result, err := r.ExecuteTool(context.Background(), "search", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok result", result)
}

func TestExecuteToolUnknownNameFails(t *testing.T) {
	r := NewRegistry(false, zerolog.Nop())
	require.NoError(t, r.RegisterProvider(&stubProvider{name: "a", defs: []ToolDefinition{{Name: "search"}}}))
	_, err := r.GetToolDefinitionsForAPI(context.Background())
	require.NoError(t, err)

	_, err = r.ExecuteTool(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvariantViolation, errs.KindOf(err))
}

func TestExecuteToolRebuildsDirtyRoutingCache(t *testing.T) {
	r := NewRegistry(false, zerolog.Nop())
	require.NoError(t, r.RegisterProvider(&stubProvider{
		name:   "a",
		defs:   []ToolDefinition{{Name: "search"}},
		result: "fresh",
	}))

	// No explicit GetToolDefinitionsForAPI call yet; routing starts dirty.
	result, err := r.ExecuteTool(context.Background(), "search", nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", result)
}

func TestRefreshToolsMarksRoutingDirty(t *testing.T) {
	r := NewRegistry(false, zerolog.Nop())
	require.NoError(t, r.RegisterProvider(&stubProvider{name: "a", defs: []ToolDefinition{{Name: "x"}}}))
	_, err := r.GetToolDefinitionsForAPI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.GetToolCount())

	r.RefreshTools()
	assert.True(t, r.routingDirty)
}

func TestValidateSchemaRejectsMalformedJSON(t *testing.T) {
	err := ValidateSchema(ToolDefinition{Name: "bad", InputSchema: []byte("{not json")})
	require.Error(t, err)
	assert.Equal(t, errs.KindSchemaFormat, errs.KindOf(err))
}

func TestValidateSchemaAcceptsValidSchema(t *testing.T) {
	err := ValidateSchema(ToolDefinition{
		Name:        "good",
		InputSchema: []byte(`{"type":"object","properties":{"query":{"type":"string"}}}`),
	})
	assert.NoError(t, err)
}
