package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type ReviewAuditRepo interface {
	Create(dbc dbctx.Context, row *learning.ReviewAudit) error
	ListForUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*learning.ReviewAudit, error)
}

type reviewAuditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewAuditRepo(db *gorm.DB, baseLog *logger.Logger) ReviewAuditRepo {
	return &reviewAuditRepo{db: db, log: baseLog.With("repo", "ReviewAuditRepo")}
}

func (r *reviewAuditRepo) Create(dbc dbctx.Context, row *learning.ReviewAudit) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *reviewAuditRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*learning.ReviewAudit, error) {
	var out []*learning.ReviewAudit
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
