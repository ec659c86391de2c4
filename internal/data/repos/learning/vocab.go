package learning

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type UnseenQuery struct {
	UserID           uuid.UUID
	Track            learning.Track
	MinTier          learning.PriorityTier
	OrderByFrequency bool
	ExcludeVocabIDs  []uuid.UUID
	Limit            int
}

type VocabRepo interface {
	Create(dbc dbctx.Context, rows []*learning.Vocab) ([]*learning.Vocab, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*learning.Vocab, error)
	GetByWords(dbc dbctx.Context, words []string) ([]*learning.Vocab, error)
	FindUnseen(dbc dbctx.Context, q UnseenQuery) ([]*learning.Vocab, error)
	ListWithEmbedding(dbc dbctx.Context, ids []uuid.UUID, limit int) ([]*learning.Vocab, error)
	RandomByTier(dbc dbctx.Context, tier learning.PriorityTier, exclude []uuid.UUID, limit int) ([]*learning.Vocab, error)
	ListUnenriched(dbc dbctx.Context, limit int) ([]*learning.Vocab, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type vocabRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVocabRepo(db *gorm.DB, baseLog *logger.Logger) VocabRepo {
	return &vocabRepo{
		db:  db,
		log: baseLog.With("repo", "VocabRepo"),
	}
}

// Create inserts new words; rows whose word already exists are skipped.
func (r *vocabRepo) Create(dbc dbctx.Context, rows []*learning.Vocab) ([]*learning.Vocab, error) {
	if len(rows) == 0 {
		return []*learning.Vocab{}, nil
	}
	now := time.Now().UTC()
	for _, v := range rows {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		v.Word = strings.TrimSpace(v.Word)
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
	}
	err := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "word"}}, DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *vocabRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*learning.Vocab, error) {
	var out []*learning.Vocab
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabRepo) GetByWords(dbc dbctx.Context, words []string) ([]*learning.Vocab, error) {
	var out []*learning.Vocab
	if len(words) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("word IN ?", words).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindUnseen returns words the user has no progress row for on the track.
func (r *vocabRepo) FindUnseen(dbc dbctx.Context, q UnseenQuery) ([]*learning.Vocab, error) {
	var out []*learning.Vocab
	tx := dbc.DB(r.db).
		Model(&learning.Vocab{}).
		Where("tier >= ?", q.MinTier).
		Where("NOT EXISTS (SELECT 1 FROM learning_progress lp WHERE lp.vocab_id = vocab.id AND lp.user_id = ? AND lp.track = ?)", q.UserID, q.Track)
	if len(q.ExcludeVocabIDs) > 0 {
		tx = tx.Where("id NOT IN ?", q.ExcludeVocabIDs)
	}
	if q.OrderByFrequency {
		tx = tx.Order("frequency_score DESC").Order("tier DESC")
	} else {
		tx = tx.Order("tier DESC").Order("frequency_score DESC")
	}
	tx = tx.Order("word ASC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListWithEmbedding returns embedded words, optionally restricted to ids.
func (r *vocabRepo) ListWithEmbedding(dbc dbctx.Context, ids []uuid.UUID, limit int) ([]*learning.Vocab, error) {
	var out []*learning.Vocab
	tx := dbc.DB(r.db).Where("embedding IS NOT NULL")
	if ids != nil {
		if len(ids) == 0 {
			return out, nil
		}
		tx = tx.Where("id IN ?", ids)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabRepo) RandomByTier(dbc dbctx.Context, tier learning.PriorityTier, exclude []uuid.UUID, limit int) ([]*learning.Vocab, error) {
	var out []*learning.Vocab
	if limit <= 0 {
		return out, nil
	}
	tx := dbc.DB(r.db).Where("tier = ?", tier)
	if len(exclude) > 0 {
		tx = tx.Where("id NOT IN ?", exclude)
	}
	if err := tx.Order("RANDOM()").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabRepo) ListUnenriched(dbc dbctx.Context, limit int) ([]*learning.Vocab, error) {
	var out []*learning.Vocab
	tx := dbc.DB(r.db).Where("enriched_at IS NULL").Order("created_at ASC").Order("word ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&learning.Vocab{}).
		Where("id = ?", id).
		Updates(updates).Error
}
