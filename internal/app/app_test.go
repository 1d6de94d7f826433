package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/accelforge/enginecache/internal/adapters/memstore"
	"github.com/accelforge/enginecache/internal/adapters/telemetry"
	"github.com/accelforge/enginecache/internal/app"
	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports/mocks"
	"github.com/accelforge/enginecache/internal/engine/cache"
)

func newTestApp(t *testing.T) (*app.App, *memstore.Store) {
	t.Helper()

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	cfg := domain.CacheConfig{
		CacheEnabled:  true,
		ReuseEnabled:  true,
		CacheRoot:     t.TempDir(),
		CapacityBytes: 1 << 20,
	}
	store := memstore.NewStore()
	manager := cache.NewManager(store, log, telemetry.NewNoopTracer(), cfg)
	return app.New(manager, log, &cfg), store
}

func populate(t *testing.T, store *memstore.Store) domain.Fingerprint {
	t.Helper()

	graph := domain.NewGraphDescriptor(
		domain.Node{Op: "relu", Inputs: []int{domain.GraphInput(0)}, Outputs: 1},
	)
	shapes := domain.NewShapeEnvelope(domain.StaticInput(domain.DTypeFloat32, 1))
	settings := domain.CompilationSettings{}

	fp, err := domain.ComputeFingerprint(graph, shapes, settings)
	require.NoError(t, err)
	require.NoError(t, store.Save(fp, domain.SlotEngine, []byte("engine")))
	return fp
}

func TestApp_Config(t *testing.T) {
	a, _ := newTestApp(t)

	cfg := a.Config()
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, int64(1<<20), cfg.CapacityBytes)
}

func TestApp_Stats(t *testing.T) {
	a, _ := newTestApp(t)

	stats := a.Stats(context.Background())
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(1<<20), stats.CapacityBytes)
}

func TestApp_Clean(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)

	cfg := domain.DefaultCacheConfig()
	store := memstore.NewStore()

	graph := domain.NewGraphDescriptor(
		domain.Node{Op: "relu", Inputs: []int{domain.GraphInput(0)}, Outputs: 1},
	)
	shapes := domain.NewShapeEnvelope(domain.StaticInput(domain.DTypeFloat32, 1))
	fp, err := domain.ComputeFingerprint(graph, shapes, domain.CompilationSettings{})
	require.NoError(t, err)
	require.NoError(t, store.Save(fp, domain.SlotEngine, []byte("engine")))

	manager := cache.NewManager(store, log, telemetry.NewNoopTracer(), cfg)
	a := app.New(manager, log, &cfg)

	require.NoError(t, a.Clean(context.Background()))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, a.Stats(context.Background()).Entries)
}

func TestApp_Invalidate(t *testing.T) {
	a, store := newTestApp(t)
	fp := populate(t, store)

	require.NoError(t, a.Invalidate(context.Background(), fp.String()))
	assert.Equal(t, 0, store.Len())

	err := a.Invalidate(context.Background(), "definitely-not-hex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrInvalidFingerprint.Error())
}
