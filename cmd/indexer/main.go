// Command indexer rebuilds the vector store artifacts from processed product
// JSON files. The server picks up the new artifacts on its next search.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"

	"shopassist/internal/catalog"
	"shopassist/internal/config"
	"shopassist/internal/llm"
	"shopassist/internal/logger"
	"shopassist/pkg"
)

const embedBatchSize = 100

func main() {
	inputDir := flag.String("input", "data/processed", "directory of processed product JSON files")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize logger")
	}

	products, err := loadProducts(*inputDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *inputDir).Msg("failed to load product files")
	}
	if len(products) == 0 {
		logger.Fatal().Str("dir", *inputDir).Msg("no products found to index")
	}
	logger.Info().Int("products", len(products)).Msg("products loaded")

	embedder := llm.NewOpenAIEmbedder(cfg.LLM)
	vectors, err := embedProducts(context.Background(), embedder, products)
	if err != nil {
		logger.Fatal().Err(err).Msg("embedding failed")
	}

	if err := writeArtifacts(cfg.Catalog, products, vectors); err != nil {
		logger.Fatal().Err(err).Msg("failed to write artifacts")
	}
	logger.Info().
		Int("products", len(products)).
		Str("vectors", cfg.Catalog.VectorsPath).
		Str("metadata", cfg.Catalog.MetadataPath).
		Msg("index rebuilt")
}

// loadProducts reads every JSON file in dir and deduplicates the records.
// Files hold either a bare list of products or an object with a "products"
// key; the last file wins on duplicate keys.
func loadProducts(dir string) ([]pkg.ProductCandidate, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int)
	var products []pkg.ProductCandidate
	for _, path := range paths {
		batch, err := readProductFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("skipping unreadable product file")
			continue
		}
		for _, p := range batch {
			key := dedupKey(p)
			if key == "" {
				continue
			}
			if i, ok := seen[key]; ok {
				products[i] = p
				continue
			}
			seen[key] = len(products)
			products = append(products, p)
		}
	}
	return products, nil
}

func readProductFile(path string) ([]pkg.ProductCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []pkg.ProductCandidate
	if err := sonic.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Products []pkg.ProductCandidate `json:"products"`
	}
	if err := sonic.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized product file shape: %w", err)
	}
	return wrapped.Products, nil
}

func dedupKey(p pkg.ProductCandidate) string {
	switch {
	case p.ProductID != "":
		return p.ProductID
	case p.SourceURL != "":
		return p.SourceURL
	default:
		return p.Title
	}
}

// productText renders the text that gets embedded for one product.
func productText(p pkg.ProductCandidate) string {
	price := ""
	if p.Pricing.Price != nil {
		price = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", *p.Pricing.Price), "0"), ".")
	}
	return fmt.Sprintf("Title: %s. Description: %s. Price: %s. URL: %s.",
		p.Title, p.Description, price, p.SourceURL)
}

func embedProducts(ctx context.Context, embedder *llm.OpenAIEmbedder, products []pkg.ProductCandidate) ([][]float32, error) {
	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = productText(p)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
		logger.Debug().Int("embedded", end).Int("total", len(texts)).Msg("embedding progress")
	}

	for _, v := range vectors {
		catalog.NormalizeL2(v)
	}
	return vectors, nil
}

// writeArtifacts writes both artifacts through temp files so a crashed run
// never leaves a readable half-written pair.
func writeArtifacts(cfg config.CatalogConfig, products []pkg.ProductCandidate, vectors [][]float32) error {
	if err := os.MkdirAll(filepath.Dir(cfg.VectorsPath), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.MetadataPath), 0o755); err != nil {
		return err
	}

	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	vectorsFile := catalog.VectorsFile{Dimension: dimension, Vectors: vectors}

	if err := writeJSON(cfg.VectorsPath, vectorsFile); err != nil {
		return err
	}
	return writeJSON(cfg.MetadataPath, products)
}

func writeJSON(path string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
