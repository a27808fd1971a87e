package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/config"
	"github.com/testply/guestexam-backend/internal/model"
	"github.com/testply/guestexam-backend/internal/repository"
)

// CatalogService serves the guest exam catalog with a Redis cache in
// front of PostgreSQL. Definitions are cached whole (answer keys
// included) and never leave the server uncut; guests only ever see
// generated variants.
type CatalogService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "catalog_service").Logger(),
	}
}

// ListGuestExams returns the published catalog in position order.
// Cache miss or Redis trouble falls through to PostgreSQL.
func (s *CatalogService) ListGuestExams(ctx context.Context) ([]model.ExamSummary, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamCatalogKey()).Result()
	if err == nil {
		var exams []model.ExamSummary
		if jsonErr := json.Unmarshal([]byte(raw), &exams); jsonErr == nil {
			return exams, nil
		}
		s.log.Warn().Msg("Corrupt catalog cache entry, refreshing from DB")
	} else if err != redis.Nil {
		s.log.Warn().Err(err).Msg("Catalog cache read failed, falling back to DB")
	}

	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published exams: %w", err)
	}
	s.cacheCatalog(ctx, exams)
	return exams, nil
}

// GetDefinition returns one published exam with its questions.
func (s *CatalogService) GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var def model.ExamDefinition
		if jsonErr := json.Unmarshal([]byte(raw), &def); jsonErr == nil {
			return &def, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt exam cache entry, refreshing from DB")
	} else if err != redis.Nil {
		s.log.Warn().Err(err).Msg("Exam cache read failed, falling back to DB")
	}

	def, err := s.examRepo.GetDefinition(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam definition: %w", err)
	}
	s.cacheDefinition(ctx, def)
	return def, nil
}

// PrewarmAllCaches loads the catalog and every published definition
// into Redis before the server accepts traffic, so the first wave of
// guests never stampedes PostgreSQL.
func (s *CatalogService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	s.cacheCatalog(ctx, exams)

	for _, e := range exams {
		def, err := s.examRepo.GetDefinition(ctx, e.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", e.ID.String()).Msg("Prewarm skipped exam")
			continue
		}
		s.cacheDefinition(ctx, def)
	}

	s.log.Info().Int("exams", len(exams)).Msg("Exam caches prewarmed")
	return nil
}

func (s *CatalogService) cacheCatalog(ctx context.Context, exams []model.ExamSummary) {
	raw, err := json.Marshal(exams)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamCatalogKey(), raw, 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Catalog cache write failed")
	}
}

func (s *CatalogService) cacheDefinition(ctx context.Context, def *model.ExamDefinition) {
	raw, err := json.Marshal(def)
	if err != nil {
		return
	}
	key := config.CacheKey.ExamPayloadKey(def.ID.String())
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Exam cache write failed")
	}
}
