package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/profile"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

const defaultBatchSize = 10

// ProfileWriter persists seeded personas.
type ProfileWriter interface {
	Upsert(ctx context.Context, p *profile.Profile) error
}

// Result summarises an import run. Failures never abort the run.
type Result struct {
	Succeeded int
	Failed    int
	Errors    []error
}

func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Importer embeds catalog documents and writes them to the indexes.
type Importer struct {
	embedder  embedding.Embedder
	items     vectorstore.Index
	profiles  ProfileWriter
	batchSize int
	logger    *logging.Logger
}

func NewImporter(embedder embedding.Embedder, items vectorstore.Index, profiles ProfileWriter, logger *logging.Logger) *Importer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Importer{
		embedder:  embedder,
		items:     items,
		profiles:  profiles,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// ImportProducts embeds product descriptions in batches and upserts them.
// Invalid products and failed batches are counted and skipped.
func (imp *Importer) ImportProducts(ctx context.Context, products []Product) Result {
	var res Result
	valid := make([]Product, 0, len(products))
	for _, p := range products {
		if err := p.Validate(); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			continue
		}
		valid = append(valid, p)
	}

	totalBatches := (len(valid) + imp.batchSize - 1) / imp.batchSize
	for start := 0; start < len(valid); start += imp.batchSize {
		if err := ctx.Err(); err != nil {
			res.Failed += len(valid) - start
			res.Errors = append(res.Errors, err)
			break
		}
		end := min(start+imp.batchSize, len(valid))
		batch := valid[start:end]
		batchNum := start/imp.batchSize + 1

		if err := imp.importProductBatch(ctx, batch); err != nil {
			res.Failed += len(batch)
			res.Errors = append(res.Errors, fmt.Errorf("batch %d/%d: %w", batchNum, totalBatches, err))
			imp.logger.Error("catalog batch failed", "batch", batchNum, "total_batches", totalBatches, "error", err)
			continue
		}
		res.Succeeded += len(batch)
		imp.logger.Info("catalog batch imported", "batch", batchNum, "total_batches", totalBatches, "items", len(batch))
	}
	return res
}

func (imp *Importer) importProductBatch(ctx context.Context, batch []Product) error {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.EmbeddingText()
	}
	vectors, err := imp.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("catalog: got %d embeddings for %d products", len(vectors), len(batch))
	}

	upserts := make([]vectorstore.Vector, len(batch))
	for i, p := range batch {
		upserts[i] = vectorstore.Vector{ID: p.ItemID, Values: vectors[i], Metadata: p.Metadata()}
	}
	return imp.items.Upsert(ctx, upserts)
}

// ImportPersonas embeds each persona's full description and stores it as a
// user profile.
func (imp *Importer) ImportPersonas(ctx context.Context, personas []Persona) Result {
	var res Result
	for i, persona := range personas {
		if err := imp.importPersona(ctx, persona); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Errorf("persona %s: %w", persona.UserID, err))
			imp.logger.Error("persona import failed", "index", i, "user_id", persona.UserID, "error", err)
			continue
		}
		res.Succeeded++
	}
	return res
}

func (imp *Importer) importPersona(ctx context.Context, persona Persona) error {
	if err := persona.Validate(); err != nil {
		return err
	}
	if imp.profiles == nil {
		return errors.New("catalog: no profile writer configured")
	}
	vec, err := imp.embedder.Embed(ctx, persona.EmbeddingText())
	if err != nil {
		return err
	}
	return imp.profiles.Upsert(ctx, &profile.Profile{
		UserID:           persona.UserID,
		AgeRange:         persona.AgeRange,
		HouseholdSize:    persona.HouseholdSize,
		City:             persona.City,
		StylePreference:  persona.StylePreference,
		Lifestyle:        persona.Lifestyle,
		PriceSensitivity: persona.PriceSensitivity,
		ShoppingStyle:    persona.ShoppingStyle,
		Interests:        persona.Interests,
		LikedItems:       nonNil(persona.LikedItems),
		DislikedItems:    nonNil(persona.DislikedItems),
		Vector:           vec,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
