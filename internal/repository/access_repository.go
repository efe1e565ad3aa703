package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
)

const accessColumns = `id, notice_id, wallet_address, first_viewed_at, last_viewed_at, view_count, signed, signed_at, signature, ip_address, user_agent`

// AccessRepository persists per-wallet view/sign state and the authorization log.
type AccessRepository struct {
	db *sqlx.DB
}

// NewAccessRepository constructs the repository.
func NewAccessRepository(db *sqlx.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// Get returns the access record of wallet for notice.
func (r *AccessRepository) Get(ctx context.Context, noticeID, wallet string) (*models.NoticeAccess, error) {
	query := `SELECT ` + accessColumns + ` FROM notice_access WHERE notice_id = $1 AND lower(wallet_address) = lower($2)`
	var access models.NoticeAccess
	if err := r.db.GetContext(ctx, &access, query, noticeID, wallet); err != nil {
		return nil, err
	}
	return &access, nil
}

// RecordView creates the record on first view and bumps the counter afterwards.
func (r *AccessRepository) RecordView(ctx context.Context, noticeID, wallet string, meta models.RequestMeta, at time.Time) (*models.NoticeAccess, error) {
	query := `INSERT INTO notice_access
	(id, notice_id, wallet_address, first_viewed_at, last_viewed_at, view_count, signed, ip_address, user_agent)
	VALUES ($1, $2, $3, $4, $4, 1, FALSE, $5, $6)
	ON CONFLICT (notice_id, lower(wallet_address)) DO UPDATE SET
	  first_viewed_at = COALESCE(notice_access.first_viewed_at, EXCLUDED.first_viewed_at),
	  last_viewed_at = EXCLUDED.last_viewed_at,
	  view_count = notice_access.view_count + 1
	RETURNING ` + accessColumns
	var access models.NoticeAccess
	if err := r.db.GetContext(ctx, &access, query, uuid.NewString(), noticeID, wallet, at, nullable(meta.IPAddress), nullable(meta.UserAgent)); err != nil {
		return nil, fmt.Errorf("record notice view: %w", err)
	}
	return &access, nil
}

// Sign stores the first signature of wallet for notice. Later calls leave the row untouched and
// return it with applied=false.
func (r *AccessRepository) Sign(ctx context.Context, noticeID, wallet, signature string, meta models.RequestMeta, at time.Time) (*models.NoticeAccess, bool, error) {
	query := `INSERT INTO notice_access
	(id, notice_id, wallet_address, view_count, signed, signed_at, signature, ip_address, user_agent)
	VALUES ($1, $2, $3, 0, TRUE, $4, $5, $6, $7)
	ON CONFLICT (notice_id, lower(wallet_address)) DO UPDATE SET
	  signed = TRUE,
	  signed_at = EXCLUDED.signed_at,
	  signature = EXCLUDED.signature,
	  ip_address = COALESCE(EXCLUDED.ip_address, notice_access.ip_address),
	  user_agent = COALESCE(EXCLUDED.user_agent, notice_access.user_agent)
	WHERE notice_access.signed = FALSE
	RETURNING ` + accessColumns
	var access models.NoticeAccess
	err := r.db.GetContext(ctx, &access, query, uuid.NewString(), noticeID, wallet, at, signature, nullable(meta.IPAddress), nullable(meta.UserAgent))
	if err == nil {
		return &access, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("sign notice access: %w", err)
	}
	existing, err := r.Get(ctx, noticeID, wallet)
	if err != nil {
		return nil, false, fmt.Errorf("load signed access: %w", err)
	}
	return existing, false, nil
}

// LogAttempt appends an authorization attempt.
func (r *AccessRepository) LogAttempt(ctx context.Context, attempt *models.AccessAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO access_attempts
	(id, notice_id, wallet_address, alert_token_id, document_token_id, is_recipient, is_server, granted, reason, ip_address, user_agent, created_at)
	VALUES (:id, :notice_id, :wallet_address, :alert_token_id, :document_token_id, :is_recipient, :is_server, :granted, :reason, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("log access attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the newest attempts for a notice.
func (r *AccessRepository) ListAttempts(ctx context.Context, noticeID string, limit int) ([]models.AccessAttempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT id, notice_id, wallet_address, alert_token_id, document_token_id, is_recipient, is_server,
       granted, reason, ip_address, user_agent, created_at
	FROM access_attempts WHERE notice_id = $1 ORDER BY created_at DESC LIMIT $2`
	attempts := make([]models.AccessAttempt, 0)
	if err := r.db.SelectContext(ctx, &attempts, query, noticeID, limit); err != nil {
		return nil, fmt.Errorf("list access attempts: %w", err)
	}
	return attempts, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
