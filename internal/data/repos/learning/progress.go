package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

// DueQuery filters progress rows for one user and track.
type DueQuery struct {
	UserID uuid.UUID
	Track  learning.Track
	Now    time.Time
	// MinLapses > 0 restricts to leeches; the due-date filter is skipped.
	MinLapses int
	// MaxLapses > 0 excludes rows with Lapses >= MaxLapses.
	MaxLapses        int
	OrderByFrequency bool
	ExcludeVocabIDs  []uuid.UUID
	Limit            int
}

type ProgressRepo interface {
	Get(dbc dbctx.Context, userID, vocabID uuid.UUID, track learning.Track) (*learning.LearningProgress, error)
	GetForVocab(dbc dbctx.Context, userID uuid.UUID, track learning.Track, vocabIDs []uuid.UUID) (map[uuid.UUID]*learning.LearningProgress, error)
	Upsert(dbc dbctx.Context, p *learning.LearningProgress) (*learning.LearningProgress, error)
	FindDue(dbc dbctx.Context, q DueQuery) ([]*learning.LearningProgress, error)
	FindLeeches(dbc dbctx.Context, q DueQuery) ([]*learning.LearningProgress, error)
	ActiveVocabIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListActiveUsers(dbc dbctx.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{
		db:  db,
		log: baseLog.With("repo", "ProgressRepo"),
	}
}

func (r *progressRepo) Get(dbc dbctx.Context, userID, vocabID uuid.UUID, track learning.Track) (*learning.LearningProgress, error) {
	if userID == uuid.Nil || vocabID == uuid.Nil || track == "" {
		return nil, nil
	}
	var row learning.LearningProgress
	err := dbc.DB(r.db).
		Where("user_id = ? AND vocab_id = ? AND track = ?", userID, vocabID, track).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *progressRepo) GetForVocab(dbc dbctx.Context, userID uuid.UUID, track learning.Track, vocabIDs []uuid.UUID) (map[uuid.UUID]*learning.LearningProgress, error) {
	out := map[uuid.UUID]*learning.LearningProgress{}
	if userID == uuid.Nil || len(vocabIDs) == 0 {
		return out, nil
	}
	var rows []*learning.LearningProgress
	if err := dbc.DB(r.db).
		Where("user_id = ? AND track = ? AND vocab_id IN ?", userID, track, vocabIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.VocabID] = row
	}
	return out, nil
}

// Upsert inserts or replaces the row keyed by (user_id, vocab_id, track).
func (r *progressRepo) Upsert(dbc dbctx.Context, p *learning.LearningProgress) (*learning.LearningProgress, error) {
	if p == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	row := *p
	// a fresh id only lands when the key is new; on conflict the stored id wins
	row.ID = uuid.New()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	err := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "vocab_id"}, {Name: "track"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stability", "difficulty", "elapsed_days", "scheduled_days", "reps", "lapses", "state",
				"last_reviewed_at", "next_due_at",
				"dim_v", "dim_c", "dim_a", "dim_x", "dim_m", "mastery_score",
				"updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(dbc, row.UserID, row.VocabID, row.Track)
}

func (r *progressRepo) FindDue(dbc dbctx.Context, q DueQuery) ([]*learning.LearningProgress, error) {
	var out []*learning.LearningProgress
	if q.UserID == uuid.Nil {
		return out, nil
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	tx := r.baseQuery(dbc, q).
		Where("lp.next_due_at <= ?", now.UTC()).
		Where("lp.state <> ?", learning.StateNew)
	if q.MaxLapses > 0 {
		tx = tx.Where("lp.lapses < ?", q.MaxLapses)
	}
	if q.OrderByFrequency {
		tx = tx.Order("v.frequency_score DESC")
	}
	tx = tx.Order("v.tier DESC").Order("lp.next_due_at ASC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindLeeches returns high-lapse rows regardless of due date.
func (r *progressRepo) FindLeeches(dbc dbctx.Context, q DueQuery) ([]*learning.LearningProgress, error) {
	var out []*learning.LearningProgress
	if q.UserID == uuid.Nil || q.MinLapses <= 0 {
		return out, nil
	}
	tx := r.baseQuery(dbc, q).
		Where("lp.lapses >= ?", q.MinLapses)
	if q.OrderByFrequency {
		tx = tx.Order("v.frequency_score DESC")
	}
	tx = tx.Order("lp.lapses DESC").Order("lp.next_due_at ASC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *progressRepo) baseQuery(dbc dbctx.Context, q DueQuery) *gorm.DB {
	tx := dbc.DB(r.db).
		Table("learning_progress AS lp").
		Select("lp.*").
		Joins("JOIN vocab v ON v.id = lp.vocab_id").
		Where("lp.user_id = ? AND lp.track = ?", q.UserID, q.Track)
	if len(q.ExcludeVocabIDs) > 0 {
		tx = tx.Where("lp.vocab_id NOT IN ?", q.ExcludeVocabIDs)
	}
	return tx
}

func (r *progressRepo) ActiveVocabIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if userID == uuid.Nil {
		return ids, nil
	}
	err := dbc.DB(r.db).
		Model(&learning.LearningProgress{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("vocab_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListActiveUsers returns users with any progress updated since the cutoff.
func (r *progressRepo) ListActiveUsers(dbc dbctx.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	tx := dbc.DB(r.db).
		Model(&learning.LearningProgress{}).
		Where("updated_at >= ?", since.UTC()).
		Distinct().
		Order("user_id")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
