package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/rs/zerolog"
)

const (
	milvusIDField       = "doc_id"
	milvusContentField  = "content"
	milvusMetadataField = "metadata"
	milvusVectorField   = "vector"

	milvusMaxContent = 65535
)

// MilvusConfig addresses a Milvus or Zilliz Cloud deployment.
type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	APIKey     string
	Collection string
	Dimension  int
}

// MilvusIndex stores reference documents in a Milvus collection.
type MilvusIndex struct {
	mc     client.Client
	coll   string
	dim    int
	logger zerolog.Logger
}

// NewMilvusIndex connects and prepares the collection, index and load state.
func NewMilvusIndex(ctx context.Context, cfg MilvusConfig, logger zerolog.Logger) (*MilvusIndex, error) {
	addr := cfg.Address
	if addr == "" {
		addr = "localhost:19530"
	}
	coll := cfg.Collection
	if coll == "" {
		coll = "reference_documents"
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 1536
	}

	mc, err := client.NewClient(ctx, client.Config{
		Address:  addr,
		Username: cfg.Username,
		Password: cfg.Password,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	idx := &MilvusIndex{
		mc:     mc,
		coll:   coll,
		dim:    dim,
		logger: logger.With().Str("component", "milvus").Logger(),
	}
	if err := idx.ensureCollection(ctx); err != nil {
		_ = mc.Close()
		return nil, err
	}
	return idx, nil
}

// Name implements Index.
func (m *MilvusIndex) Name() string { return "milvus" }

func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	has, err := m.mc.HasCollection(ctx, m.coll)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}

	if !has {
		schema := entity.NewSchema().
			WithName(m.coll).
			WithDescription("complaint reference documents").
			WithField(entity.NewField().WithName(milvusIDField).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(milvusContentField).WithDataType(entity.FieldTypeVarChar).WithMaxLength(milvusMaxContent)).
			WithField(entity.NewField().WithName(milvusMetadataField).WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096)).
			WithField(entity.NewField().WithName(milvusVectorField).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(m.dim)))

		if err := m.mc.CreateCollection(ctx, schema, 2); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		m.logger.Info().Str("collection", m.coll).Msg("milvus collection created")

		index, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
		if err != nil {
			return fmt.Errorf("build index params: %w", err)
		}
		if err := m.mc.CreateIndex(ctx, m.coll, milvusVectorField, index, false, client.WithIndexName("idx_vector")); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	if err := m.mc.LoadCollection(ctx, m.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

// Upsert implements Index.
func (m *MilvusIndex) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(docs))
	contents := make([]string, 0, len(docs))
	metadata := make([]string, 0, len(docs))
	vectors := make([][]float32, 0, len(docs))

	for _, doc := range docs {
		if len(doc.Embedding) != m.dim {
			return ErrDimensionMismatch
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", doc.ID, err)
		}
		ids = append(ids, doc.ID)
		contents = append(contents, truncate(doc.Content, milvusMaxContent))
		metadata = append(metadata, string(meta))
		vectors = append(vectors, doc.Embedding)
	}

	_, err := m.mc.Upsert(ctx, m.coll, "",
		entity.NewColumnVarChar(milvusIDField, ids),
		entity.NewColumnVarChar(milvusContentField, contents),
		entity.NewColumnVarChar(milvusMetadataField, metadata),
		entity.NewColumnFloatVector(milvusVectorField, m.dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("upsert milvus documents: %w", err)
	}

	if err := m.mc.Flush(ctx, m.coll, false); err != nil {
		return fmt.Errorf("flush collection: %w", err)
	}

	m.logger.Debug().Int("count", len(docs)).Msg("reference documents upserted")
	return nil
}

// Search implements Index.
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) != m.dim {
		return nil, ErrDimensionMismatch
	}
	if topK <= 0 {
		topK = 4
	}

	sp, err := entity.NewIndexHNSWSearchParam(74)
	if err != nil {
		return nil, fmt.Errorf("build search params: %w", err)
	}

	results, err := m.mc.Search(ctx, m.coll, []string{}, "",
		[]string{milvusIDField, milvusContentField, milvusMetadataField},
		[]entity.Vector{entity.FloatVector(vector)},
		milvusVectorField, entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search milvus: %w", err)
	}

	var matches []Match
	for _, result := range results {
		cols := map[string]entity.Column{}
		for _, c := range result.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < result.ResultCount; i++ {
			doc := Document{
				ID:      varCharAt(cols[milvusIDField], i),
				Content: varCharAt(cols[milvusContentField], i),
			}
			if raw := varCharAt(cols[milvusMetadataField], i); raw != "" {
				_ = json.Unmarshal([]byte(raw), &doc.Metadata)
			}
			var score float32
			if i < len(result.Scores) {
				score = result.Scores[i]
			}
			matches = append(matches, Match{Document: doc, Score: score})
		}
	}
	return matches, nil
}

// Close releases the Milvus connection.
func (m *MilvusIndex) Close() error {
	return m.mc.Close()
}

func varCharAt(col entity.Column, i int) string {
	c, ok := col.(*entity.ColumnVarChar)
	if !ok {
		return ""
	}
	data := c.Data()
	if i >= len(data) {
		return ""
	}
	return data[i]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	// back off to a rune boundary
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
