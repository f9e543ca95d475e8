package vectorstore

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// referenceDocument is the row layout of the pgvector-backed reference table.
type referenceDocument struct {
	ID        string            `gorm:"primaryKey;type:text"`
	Content   string            `gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	Embedding pgvector.Vector
	Distance  float64 `gorm:"->;-:migration"`
}

func (referenceDocument) TableName() string {
	return "reference_documents"
}

// PGVectorIndex stores reference documents in Postgres using the vector extension.
type PGVectorIndex struct {
	db     *gorm.DB
	dim    int
	logger zerolog.Logger
}

// NewPGVectorIndex constructs the index. Call Migrate before first use.
func NewPGVectorIndex(db *gorm.DB, dim int, logger zerolog.Logger) *PGVectorIndex {
	if dim <= 0 {
		dim = 1536
	}
	return &PGVectorIndex{
		db:     db,
		dim:    dim,
		logger: logger.With().Str("component", "pgvector").Logger(),
	}
}

// Name implements Index.
func (p *PGVectorIndex) Name() string { return "pgvector" }

// Migrate enables the extension and creates the reference table when absent.
func (p *PGVectorIndex) Migrate(ctx context.Context) error {
	db := p.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS reference_documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata JSONB,
		embedding VECTOR(%d)
	)`, p.dim)
	if err := db.Exec(ddl).Error; err != nil {
		return fmt.Errorf("create reference table: %w", err)
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_reference_documents_embedding ON reference_documents USING hnsw (embedding vector_cosine_ops)").Error; err != nil {
		return fmt.Errorf("create reference index: %w", err)
	}
	return nil
}

// Upsert implements Index.
func (p *PGVectorIndex) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	rows := make([]referenceDocument, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) != p.dim {
			return ErrDimensionMismatch
		}
		rows = append(rows, referenceDocument{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  datatypes.JSONMap(doc.Metadata),
			Embedding: pgvector.NewVector(doc.Embedding),
		})
	}

	err := p.db.WithContext(ctx).
		Omit("Distance").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "metadata", "embedding"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert reference documents: %w", err)
	}

	p.logger.Debug().Int("count", len(rows)).Msg("reference documents upserted")
	return nil
}

// Search implements Index ordering by cosine distance.
func (p *PGVectorIndex) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) != p.dim {
		return nil, ErrDimensionMismatch
	}
	if topK <= 0 {
		topK = 4
	}

	query := pgvector.NewVector(vector)
	var rows []referenceDocument
	err := p.db.WithContext(ctx).
		Model(&referenceDocument{}).
		Select("id, content, metadata, embedding <=> ? AS distance", query).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{query}},
		}).
		Limit(topK).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search reference documents: %w", err)
	}

	return toMatches(rows), nil
}

func toMatches(rows []referenceDocument) []Match {
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			Document: Document{
				ID:       row.ID,
				Content:  row.Content,
				Metadata: map[string]interface{}(row.Metadata),
			},
			Score: float32(1 - row.Distance),
		})
	}
	return matches
}
