package implementation

import (
	"context"
	"database/sql"
	"time"

	"site-research-be/internal/entity"
	"site-research-be/internal/mapper"
	"site-research-be/internal/model"
	"site-research-be/internal/repository/contract"
	"site-research-be/internal/repository/scope"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentChunkMapper
}

func NewDocumentChunkRepository(db *gorm.DB) contract.DocumentChunkRepository {
	return &DocumentChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentChunkMapper(),
	}
}

func (r *DocumentChunkRepositoryImpl) upsert(db *gorm.DB, chunks []*entity.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]*model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ToModel(c)
	}

	return db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "metadata", "embedding", "chunk_index", "updated_at"}),
		}).
		CreateInBatches(models, 100).Error
}

// ReplaceSource swaps every chunk of one page in a single transaction so
// readers never see the page half-ingested.
func (r *DocumentChunkRepositoryImpl) ReplaceSource(ctx context.Context, collection, source string, chunks []*entity.DocumentChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(scope.ByCollection(collection), scope.BySource(source)).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		return r.upsert(tx, chunks)
	})
}

// SearchSimilarWithScore ranks chunks by cosine similarity.
// pgvector's <=> is cosine distance, so similarity = 1 - distance.
func (r *DocumentChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, collection string, embedding []float32, limit int) ([]*contract.ScoredDocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.DocumentChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Scopes(scope.ByCollection(collection)).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredDocumentChunk, len(results))
	for i := range results {
		scored[i] = &contract.ScoredDocumentChunk{
			Chunk:      r.mapper.ToEntity(&results[i].DocumentChunk),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}

func (r *DocumentChunkRepositoryImpl) FindAllByCollection(ctx context.Context, collection string) ([]*entity.DocumentChunk, error) {
	var models []*model.DocumentChunk
	err := r.db.WithContext(ctx).
		Omit("embedding").
		Scopes(scope.ByCollection(collection), scope.OrderByDocument).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entities := make([]*entity.DocumentChunk, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *DocumentChunkRepositoryImpl) CountByCollection(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.DocumentChunk{}).Scopes(scope.ByCollection(collection)).Count(&count).Error
	return count, err
}

func (r *DocumentChunkRepositoryImpl) LastModified(ctx context.Context, collection string) (time.Time, error) {
	var last sql.NullTime
	err := r.db.WithContext(ctx).
		Model(&model.DocumentChunk{}).
		Scopes(scope.ByCollection(collection)).
		Select("MAX(updated_at)").
		Row().
		Scan(&last)
	if err != nil {
		return time.Time{}, err
	}
	return last.Time, nil
}

func (r *DocumentChunkRepositoryImpl) DeleteByCollection(ctx context.Context, collection string) error {
	return r.db.WithContext(ctx).
		Scopes(scope.ByCollection(collection)).
		Delete(&model.DocumentChunk{}).Error
}
