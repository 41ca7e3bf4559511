package upstreams

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasanthk84/oi-analyzer/models"
)

type fakeClient struct {
	target models.UpstreamTarget
}

func (f *fakeClient) Name() string                   { return f.target.Name }
func (f *fakeClient) Target() models.UpstreamTarget  { return f.target }
func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func newFakeClient(name string, enabled bool, capabilities ...models.Capability) *fakeClient {
	return &fakeClient{
		target: models.UpstreamTarget{
			Name:         name,
			BaseURL:      "http://" + name + ".local",
			Capabilities: models.NewCapabilitySet(capabilities...),
			Enabled:      enabled,
		},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()

	client := newFakeClient("executor", true, models.CapabilityExecution)
	require.NoError(t, registry.Register(client))

	got, err := registry.Get("executor")
	require.NoError(t, err)
	assert.Equal(t, client, got)
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newFakeClient("executor", true)))
	err := registry.Register(newFakeClient("executor", true))

	assert.ErrorIs(t, err, ErrUpstreamAlreadyRegistered)
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_RegisterNilClient(t *testing.T) {
	registry := NewRegistry()

	assert.Error(t, registry.Register(nil))
}

func TestRegistry_GetUnknown(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("missing")

	assert.ErrorIs(t, err, ErrUpstreamNotRegistered)
}

func TestRegistry_FirstWithCapability(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newFakeClient("executor", true,
		models.CapabilityExecution, models.CapabilityPositionManagement)))
	require.NoError(t, registry.Register(newFakeClient("analytics", true,
		models.CapabilityAnalytics)))

	client, err := registry.FirstWithCapability(models.CapabilityExecution)
	require.NoError(t, err)
	assert.Equal(t, "executor", client.Name())

	client, err = registry.FirstWithCapability(models.CapabilityAnalytics)
	require.NoError(t, err)
	assert.Equal(t, "analytics", client.Name())
}

func TestRegistry_FirstWithCapability_PrefersRegistrationOrder(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newFakeClient("primary", true, models.CapabilityAnalytics)))
	require.NoError(t, registry.Register(newFakeClient("secondary", true, models.CapabilityAnalytics)))

	client, err := registry.FirstWithCapability(models.CapabilityAnalytics)
	require.NoError(t, err)
	assert.Equal(t, "primary", client.Name())
}

func TestRegistry_FirstWithCapability_SkipsDisabled(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newFakeClient("executor", false, models.CapabilityExecution)))

	_, err := registry.FirstWithCapability(models.CapabilityExecution)

	assert.ErrorIs(t, err, ErrNoCapableUpstream)
}

func TestRegistry_WithCapability(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newFakeClient("executor", true,
		models.CapabilityExecution, models.CapabilityPositionManagement)))
	require.NoError(t, registry.Register(newFakeClient("analytics", true,
		models.CapabilityAnalytics, models.CapabilityPositionManagement)))

	matches := registry.WithCapability(models.CapabilityPositionManagement)

	require.Len(t, matches, 2)
	assert.Equal(t, "executor", matches[0].Name())
	assert.Equal(t, "analytics", matches[1].Name())

	assert.Empty(t, registry.WithCapability(models.CapabilityAutoTrading))
}

func TestRegistry_NamesAndTargets(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newFakeClient("executor", true)))
	require.NoError(t, registry.Register(newFakeClient("analytics", true)))

	assert.Equal(t, []string{"executor", "analytics"}, registry.Names())

	targets := registry.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "executor", targets[0].Name)
	assert.Equal(t, "analytics", targets[1].Name)
}
