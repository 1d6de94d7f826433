package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/accelforge/enginecache/internal/adapters/blobzip"
	"github.com/accelforge/enginecache/internal/adapters/memstore"
	"github.com/accelforge/enginecache/internal/adapters/telemetry"
	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports/mocks"
	"github.com/accelforge/enginecache/internal/engine/cache"
)

func testConfig() domain.CacheConfig {
	return domain.CacheConfig{
		CacheEnabled: true,
		ReuseEnabled: true,
	}
}

func quietLogger(ctrl *gomock.Controller) *mocks.MockLogger {
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	return log
}

func testRequest(op string) (domain.GraphDescriptor, domain.ShapeEnvelope, domain.CompilationSettings) {
	graph := domain.NewGraphDescriptor(
		domain.Node{Op: op, Inputs: []int{domain.GraphInput(0)}, Outputs: 1},
	)
	shapes := domain.NewShapeEnvelope(domain.StaticInput(domain.DTypeFloat32, 1, 3, 224, 224))
	settings := domain.CompilationSettings{EnabledPrecisions: []domain.DType{domain.DTypeFloat32}}
	return graph, shapes, settings
}

func buildArtifact(engine []byte) cache.BuildFunc {
	return func(_ context.Context) (*domain.Artifact, error) {
		return &domain.Artifact{
			Engine: engine,
			Metadata: domain.ArtifactMetadata{
				InputNames:  []string{"input_0"},
				OutputNames: []string{"output_0"},
				BuiltAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			},
		}, nil
	}
}

func TestManager_GetOrBuild_HitSkipsBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	graph, shapes, settings := testRequest("relu")
	engine := []byte("compiled engine bytes")

	var builds atomic.Int32
	build := func(ctx context.Context) (*domain.Artifact, error) {
		builds.Add(1)
		return buildArtifact(engine)(ctx)
	}

	first, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, build)
	require.NoError(t, err)
	require.Equal(t, int32(1), builds.Load())

	second, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, build)
	require.NoError(t, err)
	assert.Equal(t, int32(1), builds.Load(), "second request must be served from cache")
	assert.Equal(t, first.Engine, second.Engine)
	assert.Equal(t, first.Metadata.InputNames, second.Metadata.InputNames)
	assert.Equal(t, first.Metadata.OutputNames, second.Metadata.OutputNames)
}

func TestManager_GetOrBuild_DistinctFingerprintsBuildSeparately(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	var builds atomic.Int32
	build := func(ctx context.Context) (*domain.Artifact, error) {
		builds.Add(1)
		return buildArtifact([]byte("engine"))(ctx)
	}

	reluGraph, shapes, settings := testRequest("relu")
	sigmoidGraph, _, _ := testRequest("sigmoid")

	_, err := manager.GetOrBuild(context.Background(), reluGraph, shapes, settings, build)
	require.NoError(t, err)
	_, err = manager.GetOrBuild(context.Background(), sigmoidGraph, shapes, settings, build)
	require.NoError(t, err)

	assert.Equal(t, int32(2), builds.Load())
	assert.Equal(t, 2, store.Len())
}

func TestManager_GetOrBuild_ReuseDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig()
	cfg.ReuseEnabled = false

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), cfg)

	graph, shapes, settings := testRequest("relu")

	var builds atomic.Int32
	build := func(ctx context.Context) (*domain.Artifact, error) {
		builds.Add(1)
		return buildArtifact([]byte("engine"))(ctx)
	}

	for range 3 {
		_, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, build)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), builds.Load(), "disabled reuse must rebuild every time")
	assert.Equal(t, 1, store.Len(), "rebuilds still refresh the stored artifact")
}

func TestManager_GetOrBuild_CacheDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig()
	cfg.CacheEnabled = false

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), cfg)

	graph, shapes, settings := testRequest("relu")

	artifact, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, buildArtifact([]byte("engine")))
	require.NoError(t, err)
	assert.Equal(t, []byte("engine"), artifact.Engine)
	assert.Equal(t, 0, store.Len(), "disabled caching must not store anything")
}

func TestManager_GetOrBuild_ReadFailureFallsBackToBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockArtifactStore(ctrl)
	store.EXPECT().Load(gomock.Any(), domain.SlotEngine).Return(nil, false, errors.New("disk on fire"))
	store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	store.EXPECT().Size(gomock.Any()).Return(int64(64), nil)

	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	graph, shapes, settings := testRequest("relu")

	artifact, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, buildArtifact([]byte("fresh")))
	require.NoError(t, err, "read failures must fail open toward rebuilding")
	assert.Equal(t, []byte("fresh"), artifact.Engine)
}

func TestManager_GetOrBuild_WriteFailureIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockArtifactStore(ctrl)
	store.EXPECT().Load(gomock.Any(), domain.SlotEngine).Return(nil, false, nil)
	store.EXPECT().Save(gomock.Any(), domain.SlotEngine, gomock.Any()).Return(errors.New("disk full"))

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).Times(1)

	manager := cache.NewManager(store, log, telemetry.NewNoopTracer(), testConfig())

	graph, shapes, settings := testRequest("relu")

	artifact, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, buildArtifact([]byte("fresh")))
	require.NoError(t, err, "write failures must not fail the build")
	assert.Equal(t, []byte("fresh"), artifact.Engine)
}

func TestManager_GetOrBuild_BuildErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	graph, shapes, settings := testRequest("relu")
	buildErr := errors.New("compilation failed")

	_, err := manager.GetOrBuild(context.Background(), graph, shapes, settings,
		func(_ context.Context) (*domain.Artifact, error) {
			return nil, buildErr
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, buildErr)
	assert.Equal(t, 0, store.Len(), "failed builds must not be cached")
}

func TestManager_GetOrBuild_FingerprintErrorIsHard(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	manager := cache.NewManager(memstore.NewStore(), quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	graph := domain.NewGraphDescriptor(
		domain.Node{
			Op:      "custom_plugin",
			Attrs:   []domain.Attr{domain.OpaqueAttr("handle")},
			Inputs:  []int{domain.GraphInput(0)},
			Outputs: 1,
		},
	)
	shapes := domain.NewShapeEnvelope(domain.StaticInput(domain.DTypeFloat32, 1))

	_, err := manager.GetOrBuild(context.Background(), graph, shapes, domain.CompilationSettings{},
		func(_ context.Context) (*domain.Artifact, error) {
			panic("build must not run for an unfingerprintable graph")
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnfingerprintableGraph)
}

func TestManager_GetOrBuild_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	manager := cache.NewManager(memstore.NewStore(), quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	graph, shapes, settings := testRequest("relu")

	_, err := manager.GetOrBuild(ctx, graph, shapes, settings,
		func(_ context.Context) (*domain.Artifact, error) {
			panic("build must not start on a cancelled context")
		})
	require.ErrorIs(t, err, context.Canceled)
}

func TestManager_Eviction_LRU(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Room for two 10 KiB engines plus metadata, not three.
	cfg := testConfig()
	cfg.CapacityBytes = 25 << 10

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), cfg)

	shapes := domain.NewShapeEnvelope(domain.StaticInput(domain.DTypeFloat32, 1))
	settings := domain.CompilationSettings{}
	engine := make([]byte, 10<<10)

	ops := []string{"a", "b", "c"}
	for _, op := range ops {
		graph := domain.NewGraphDescriptor(
			domain.Node{Op: op, Inputs: []int{domain.GraphInput(0)}, Outputs: 1},
		)
		_, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, buildArtifact(engine))
		require.NoError(t, err)
	}

	stats := manager.Stats()
	assert.Equal(t, 2, stats.Entries, "third insert must evict the least recently used entry")
	assert.LessOrEqual(t, stats.TotalBytes, cfg.CapacityBytes)
	assert.Equal(t, 2, store.Len(), "eviction must delete from the store, not just the index")

	// "a" was evicted; "b" and "c" survive.
	wantPresent := map[string]bool{"a": false, "b": true, "c": true}
	for _, op := range ops {
		graph := domain.NewGraphDescriptor(
			domain.Node{Op: op, Inputs: []int{domain.GraphInput(0)}, Outputs: 1},
		)
		fp, err := domain.ComputeFingerprint(graph, shapes, settings)
		require.NoError(t, err)
		_, ok, err := store.Load(fp, domain.SlotEngine)
		require.NoError(t, err)
		assert.Equal(t, wantPresent[op], ok, "presence of %q", op)
	}
}

func TestManager_Eviction_TouchRefreshesRecency(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig()
	cfg.CapacityBytes = 25 << 10

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), cfg)

	shapes := domain.NewShapeEnvelope(domain.StaticInput(domain.DTypeFloat32, 1))
	settings := domain.CompilationSettings{}
	engine := make([]byte, 10<<10)

	graphFor := func(op string) domain.GraphDescriptor {
		return domain.NewGraphDescriptor(
			domain.Node{Op: op, Inputs: []int{domain.GraphInput(0)}, Outputs: 1},
		)
	}

	for _, op := range []string{"a", "b"} {
		_, err := manager.GetOrBuild(context.Background(), graphFor(op), shapes, settings, buildArtifact(engine))
		require.NoError(t, err)
	}

	// Touch "a" so "b" becomes the LRU entry.
	_, err := manager.GetOrBuild(context.Background(), graphFor("a"), shapes, settings, buildArtifact(engine))
	require.NoError(t, err)

	_, err = manager.GetOrBuild(context.Background(), graphFor("c"), shapes, settings, buildArtifact(engine))
	require.NoError(t, err)

	wantPresent := map[string]bool{"a": true, "b": false, "c": true}
	for op, want := range wantPresent {
		fp, err := domain.ComputeFingerprint(graphFor(op), shapes, settings)
		require.NoError(t, err)
		_, ok, err := store.Load(fp, domain.SlotEngine)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "the touched entry must survive, the stale one must not (op %q)", op)
	}
}

func TestManager_Eviction_AccountsStoredBytes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Two 100 KiB zero-filled engines compress to a few dozen bytes each.
	// Capacity accounting follows what the backend holds, so neither entry
	// comes close to the budget and nothing is evicted.
	cfg := testConfig()
	cfg.CapacityBytes = 64 << 10

	backend := memstore.NewStore()
	zipped, err := blobzip.Wrap(backend)
	require.NoError(t, err)

	manager := cache.NewManager(zipped, quietLogger(ctrl), telemetry.NewNoopTracer(), cfg)

	engine := make([]byte, 100<<10)
	for _, op := range []string{"conv", "gemm"} {
		graph, shapes, settings := testRequest(op)
		_, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, buildArtifact(engine))
		require.NoError(t, err)
	}

	stats := manager.Stats()
	assert.Equal(t, 2, stats.Entries, "compressed entries must both fit the budget")
	assert.LessOrEqual(t, stats.TotalBytes, cfg.CapacityBytes)
	assert.Equal(t, 2, backend.Len())
}

func TestManager_Eviction_OversizedEntrySurvivesAlone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig()
	cfg.CapacityBytes = 1 << 10

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), cfg)

	graph, shapes, settings := testRequest("relu")

	_, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, buildArtifact(make([]byte, 4<<10)))
	require.NoError(t, err)

	stats := manager.Stats()
	assert.Equal(t, 1, stats.Entries, "a single oversized entry is kept until something replaces it")
	assert.Equal(t, 1, store.Len())
}

func TestManager_Invalidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	graph, shapes, settings := testRequest("relu")
	fp, err := domain.ComputeFingerprint(graph, shapes, settings)
	require.NoError(t, err)

	_, err = manager.GetOrBuild(context.Background(), graph, shapes, settings, buildArtifact([]byte("engine")))
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	require.NoError(t, manager.Invalidate(fp))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, manager.Stats().Entries)

	// Absent fingerprints are not an error.
	require.NoError(t, manager.Invalidate(fp))

	var builds atomic.Int32
	_, err = manager.GetOrBuild(context.Background(), graph, shapes, settings,
		func(ctx context.Context) (*domain.Artifact, error) {
			builds.Add(1)
			return buildArtifact([]byte("engine"))(ctx)
		})
	require.NoError(t, err)
	assert.Equal(t, int32(1), builds.Load(), "invalidated entries must be rebuilt")
}

func TestManager_Clear(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memstore.NewStore()
	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	shapes := domain.NewShapeEnvelope(domain.StaticInput(domain.DTypeFloat32, 1))
	for _, op := range []string{"a", "b", "c"} {
		graph := domain.NewGraphDescriptor(
			domain.Node{Op: op, Inputs: []int{domain.GraphInput(0)}, Outputs: 1},
		)
		_, err := manager.GetOrBuild(context.Background(), graph, shapes, domain.CompilationSettings{}, buildArtifact([]byte("engine")))
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.Len())

	require.NoError(t, manager.Clear())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, manager.Stats().Entries)
}

func TestManager_WarmsIndexFromStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memstore.NewStore()
	graph, shapes, settings := testRequest("relu")
	fp, err := domain.ComputeFingerprint(graph, shapes, settings)
	require.NoError(t, err)
	require.NoError(t, store.Save(fp, domain.SlotEngine, []byte("surviving engine")))

	manager := cache.NewManager(store, quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

	stats := manager.Stats()
	assert.Equal(t, 1, stats.Entries, "entries surviving a restart must count toward capacity")
	assert.Equal(t, int64(len("surviving engine")), stats.TotalBytes)
}

func TestManager_ConcurrentRequestsShareOneBuild(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		manager := cache.NewManager(memstore.NewStore(), quietLogger(ctrl), telemetry.NewNoopTracer(), testConfig())

		graph, shapes, settings := testRequest("relu")

		const callers = 8
		var builds atomic.Int32

		build := func(_ context.Context) (*domain.Artifact, error) {
			builds.Add(1)
			// Simulate a long native compilation; the other callers pile up
			// behind the in-flight build meanwhile.
			time.Sleep(time.Minute)
			return &domain.Artifact{Engine: []byte("engine")}, nil
		}

		var wg sync.WaitGroup
		results := make([]*domain.Artifact, callers)
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				artifact, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, build)
				assert.NoError(t, err)
				results[i] = artifact
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), builds.Load(), "concurrent requests for one fingerprint must share a single build")
		for _, artifact := range results {
			require.NotNil(t, artifact)
			assert.Equal(t, []byte("engine"), artifact.Engine)
		}
	})
}

func TestManager_NegativeCapacityWarnsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig()
	cfg.CapacityBytes = -1

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).Times(1)

	manager := cache.NewManager(memstore.NewStore(), log, telemetry.NewNoopTracer(), cfg)

	graph, shapes, settings := testRequest("relu")
	_, err := manager.GetOrBuild(context.Background(), graph, shapes, settings, buildArtifact(make([]byte, 1<<20)))
	require.NoError(t, err)
	assert.Equal(t, 1, manager.Stats().Entries, "negative capacity behaves as unbounded")
}
