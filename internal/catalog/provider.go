package catalog

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"shopassist/internal/logger"
	"shopassist/pkg"
)

// ErrUnavailable is returned when the vector store artifacts are missing,
// for example before the indexer has run.
var ErrUnavailable = errors.New("vector store unavailable")

// VectorsFile is the on-disk shape of the vectors artifact written by the
// indexer.
type VectorsFile struct {
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
}

// Resources is one consistent (index, metadata) pair. Readers always see the
// pair from a single load, never a mix of generations.
type Resources struct {
	Index    *FlatIndex
	Metadata []pkg.ProductCandidate

	vectorsModTime  time.Time
	metadataModTime time.Time
}

// ByID returns the product with the given id.
func (r *Resources) ByID(productID string) (pkg.ProductCandidate, bool) {
	for _, p := range r.Metadata {
		if p.ProductID == productID {
			return p, true
		}
	}
	return pkg.ProductCandidate{}, false
}

// Provider loads the vector store artifacts and serves them behind an atomic
// pointer. A modification-time check against both artifacts triggers reload;
// a single-writer lock keeps rebuilds from racing each other.
type Provider struct {
	vectorsPath  string
	metadataPath string

	current atomic.Pointer[Resources]
	mu      sync.Mutex
}

// NewProvider creates a provider for the given artifact paths. Nothing is
// loaded until the first Get or Reload.
func NewProvider(vectorsPath, metadataPath string) *Provider {
	return &Provider{
		vectorsPath:  vectorsPath,
		metadataPath: metadataPath,
	}
}

// Get returns the current resources, loading or reloading when the artifacts
// on disk are newer than the installed pair.
func (p *Provider) Get() (*Resources, error) {
	vectorsInfo, err := os.Stat(p.vectorsPath)
	if err != nil {
		return nil, ErrUnavailable
	}
	metadataInfo, err := os.Stat(p.metadataPath)
	if err != nil {
		return nil, ErrUnavailable
	}

	current := p.current.Load()
	if current != nil &&
		current.vectorsModTime.Equal(vectorsInfo.ModTime()) &&
		current.metadataModTime.Equal(metadataInfo.ModTime()) {
		return current, nil
	}

	return p.reload()
}

// Reload forces a load of both artifacts regardless of staleness.
func (p *Provider) Reload() (*Resources, error) {
	return p.reload()
}

func (p *Provider) reload() (*Resources, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vectorsInfo, err := os.Stat(p.vectorsPath)
	if err != nil {
		return nil, ErrUnavailable
	}
	metadataInfo, err := os.Stat(p.metadataPath)
	if err != nil {
		return nil, ErrUnavailable
	}

	// Another caller may have reloaded while this one waited on the lock.
	current := p.current.Load()
	if current != nil &&
		current.vectorsModTime.Equal(vectorsInfo.ModTime()) &&
		current.metadataModTime.Equal(metadataInfo.ModTime()) {
		return current, nil
	}

	// A failed load usually means the indexer is mid-rebuild and only one
	// artifact has been swapped yet. Keep serving the installed pair when
	// there is one; otherwise report the store as unavailable so searches
	// degrade to empty results instead of failing the request.
	resources, err := load(p.vectorsPath, p.metadataPath)
	if err != nil {
		if current != nil {
			logger.Warn().Err(err).Msg("artifact reload failed, keeping current pair")
			return current, nil
		}
		logger.Warn().Err(err).Msg("artifact load failed")
		return nil, ErrUnavailable
	}
	resources.vectorsModTime = vectorsInfo.ModTime()
	resources.metadataModTime = metadataInfo.ModTime()

	p.current.Store(resources)

	logger.Info().
		Int("vectors", resources.Index.Len()).
		Int("products", len(resources.Metadata)).
		Msg("catalog resources loaded")

	return resources, nil
}

func load(vectorsPath, metadataPath string) (*Resources, error) {
	vectorsData, err := os.ReadFile(vectorsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vectors artifact: %w", err)
	}
	var vf VectorsFile
	if err := sonic.Unmarshal(vectorsData, &vf); err != nil {
		return nil, fmt.Errorf("failed to parse vectors artifact: %w", err)
	}

	metadataData, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata artifact: %w", err)
	}
	var metadata []pkg.ProductCandidate
	if err := sonic.Unmarshal(metadataData, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata artifact: %w", err)
	}

	if len(metadata) != len(vf.Vectors) {
		return nil, fmt.Errorf("artifact mismatch: %d vectors for %d products", len(vf.Vectors), len(metadata))
	}

	index, err := NewFlatIndex(vf.Dimension, vf.Vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	return &Resources{Index: index, Metadata: metadata}, nil
}
