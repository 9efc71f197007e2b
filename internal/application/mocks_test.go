package application

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/jobrunner/tilevault/internal/domain"
)

// mockSource implements output.TileSource for testing.
type mockSource struct {
	mu       sync.Mutex
	data     []byte
	failKeys map[string]bool // tile keys that fail to fetch
	calls    map[string]int  // fetch count per tile key
	delay    time.Duration
	fetchErr error
}

func newMockSource() *mockSource {
	return &mockSource{
		data:     []byte("tile-bytes"),
		failKeys: make(map[string]bool),
		calls:    make(map[string]int),
	}
}

func (m *mockSource) Fetch(ctx context.Context, tile domain.TileCoordinate) ([]byte, error) {
	m.mu.Lock()
	m.calls[tile.Key()]++
	fail := m.failKeys[tile.Key()]
	delay := m.delay
	fetchErr := m.fetchErr
	data := m.data
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if fail {
		return nil, &domain.FetchError{Coordinate: tile, StatusCode: 503, Err: domain.ErrSourceUnavailable}
	}
	return data, nil
}

func (m *mockSource) URL(tile domain.TileCoordinate) string {
	return "https://tiles.test/" + tile.Key() + ".png"
}

func (m *mockSource) fetchCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

func (m *mockSource) setFail(key string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failKeys[key] = fail
}

// mockTileCache implements output.TileCache in memory. Sizes are tracked
// per region so eviction tests can set them directly.
type mockTileCache struct {
	mu       sync.Mutex
	root     string
	tiles    map[string]map[string]bool // regionID -> tile key -> present
	sizes    map[string]float64         // regionID -> MB
	storeErr error
}

func newMockTileCache() *mockTileCache {
	return &mockTileCache{
		root:  "/cache",
		tiles: make(map[string]map[string]bool),
		sizes: make(map[string]float64),
	}
}

func (m *mockTileCache) Store(_ context.Context, regionID string, tile domain.TileCoordinate, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.storeErr != nil {
		return "", m.storeErr
	}
	if m.tiles[regionID] == nil {
		m.tiles[regionID] = make(map[string]bool)
	}
	m.tiles[regionID][tile.Key()] = true
	m.sizes[regionID] += float64(len(data)) / (1024 * 1024)
	return m.TilePath(regionID, tile), nil
}

func (m *mockTileCache) TilePath(regionID string, tile domain.TileCoordinate) string {
	return filepath.Join(m.root, regionID, tile.Key()+".png")
}

func (m *mockTileCache) HasTile(regionID string, tile domain.TileCoordinate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiles[regionID][tile.Key()]
}

func (m *mockTileCache) TotalSizeMB(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0.0
	for _, size := range m.sizes {
		total += size
	}
	return total, nil
}

func (m *mockTileCache) RegionSizeMB(_ context.Context, regionID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sizes[regionID], nil
}

func (m *mockTileCache) RegionSizes(_ context.Context) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sizes := make(map[string]float64, len(m.sizes))
	for id, size := range m.sizes {
		sizes[id] = size
	}
	return sizes, nil
}

func (m *mockTileCache) RemoveRegion(_ context.Context, regionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tiles, regionID)
	delete(m.sizes, regionID)
	return nil
}

func (m *mockTileCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles = make(map[string]map[string]bool)
	m.sizes = make(map[string]float64)
	return nil
}

func (m *mockTileCache) Root() string {
	return m.root
}

// seedTile marks a tile as already present without going through Store.
func (m *mockTileCache) seedTile(regionID string, tile domain.TileCoordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiles[regionID] == nil {
		m.tiles[regionID] = make(map[string]bool)
	}
	m.tiles[regionID][tile.Key()] = true
}

// setRegionSize overrides the tracked size of a region namespace.
func (m *mockTileCache) setRegionSize(regionID string, sizeMB float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[regionID] = sizeMB
}

func (m *mockTileCache) regionTileCount(regionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tiles[regionID])
}

// mockStateStore implements output.StateStore in memory.
type mockStateStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{
		values: make(map[string]string),
	}
}

func (m *mockStateStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return "", false, m.getErr
	}
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *mockStateStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockStateStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockStateStore) Close() error {
	return nil
}

func (m *mockStateStore) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok
}
