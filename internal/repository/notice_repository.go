package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
)

const noticeColumns = `notice_id, case_id, case_number, alert_token_id, document_token_id,
       recipient_address, server_address, notice_type, issuing_agency, ipfs_hash, encryption_key,
       transaction_hash, block_number, chain_timestamp, accepted, accepted_at, acceptance_signature,
       dismissed, dismissed_at, created_at, updated_at`

// NoticeRepository persists notices and their cases.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository constructs the repository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// UpsertWithCase records the case and the notice in one transaction. Re-submitting a notice id
// overwrites its descriptive fields but never its acceptance or dismissal state.
func (r *NoticeRepository) UpsertWithCase(ctx context.Context, notice *models.Notice) (*models.Notice, error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin notice tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const caseQuery = `INSERT INTO cases (id, case_number, status, server_address, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (case_number, server_address) DO UPDATE SET updated_at = EXCLUDED.updated_at
	RETURNING id`
	var caseID string
	if err := tx.GetContext(ctx, &caseID, caseQuery, uuid.NewString(), notice.CaseNumber, models.CaseStatusOpen, notice.ServerAddress, now); err != nil {
		return nil, fmt.Errorf("upsert case: %w", err)
	}
	notice.CaseID = &caseID

	const noticeQuery = `INSERT INTO notices
	(notice_id, case_id, case_number, alert_token_id, document_token_id, recipient_address, server_address,
	 notice_type, issuing_agency, ipfs_hash, encryption_key, transaction_hash, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	ON CONFLICT (notice_id) DO UPDATE SET
	  case_id = EXCLUDED.case_id,
	  case_number = EXCLUDED.case_number,
	  alert_token_id = COALESCE(EXCLUDED.alert_token_id, notices.alert_token_id),
	  document_token_id = COALESCE(EXCLUDED.document_token_id, notices.document_token_id),
	  recipient_address = EXCLUDED.recipient_address,
	  server_address = EXCLUDED.server_address,
	  notice_type = EXCLUDED.notice_type,
	  issuing_agency = EXCLUDED.issuing_agency,
	  ipfs_hash = COALESCE(EXCLUDED.ipfs_hash, notices.ipfs_hash),
	  encryption_key = COALESCE(EXCLUDED.encryption_key, notices.encryption_key),
	  transaction_hash = COALESCE(EXCLUDED.transaction_hash, notices.transaction_hash),
	  updated_at = EXCLUDED.updated_at
	RETURNING ` + noticeColumns
	var saved models.Notice
	if err := tx.GetContext(ctx, &saved, noticeQuery,
		notice.NoticeID, caseID, notice.CaseNumber, notice.AlertTokenID, notice.DocumentTokenID,
		notice.RecipientAddress, notice.ServerAddress, notice.NoticeType, notice.IssuingAgency,
		notice.IPFSHash, notice.EncryptionKey, notice.TransactionHash, now,
	); err != nil {
		return nil, fmt.Errorf("upsert notice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit notice tx: %w", err)
	}
	return &saved, nil
}

// InsertIfAbsent stores a reconstructed notice without touching an existing row.
func (r *NoticeRepository) InsertIfAbsent(ctx context.Context, notice *models.Notice) (bool, error) {
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = time.Now().UTC()
	}
	notice.UpdatedAt = notice.CreatedAt
	const query = `INSERT INTO notices
	(notice_id, case_number, alert_token_id, document_token_id, recipient_address, server_address,
	 notice_type, issuing_agency, ipfs_hash, created_at, updated_at)
	VALUES (:notice_id, :case_number, :alert_token_id, :document_token_id, :recipient_address, :server_address,
	 :notice_type, :issuing_agency, :ipfs_hash, :created_at, :updated_at)
	ON CONFLICT (notice_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, notice)
	if err != nil {
		return false, fmt.Errorf("insert reconstructed notice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check reconstructed notice rows: %w", err)
	}
	return affected > 0, nil
}

// GetByID retrieves one notice.
func (r *NoticeRepository) GetByID(ctx context.Context, noticeID string) (*models.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices WHERE notice_id = $1`
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, query, noticeID); err != nil {
		return nil, err
	}
	return &notice, nil
}

// FindByTokenID matches either token of the pair, newest first.
func (r *NoticeRepository) FindByTokenID(ctx context.Context, tokenID int64) (*models.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices
	WHERE alert_token_id = $1 OR document_token_id = $1
	ORDER BY created_at DESC LIMIT 1`
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, query, tokenID); err != nil {
		return nil, err
	}
	return &notice, nil
}

// FindByAlertToken resolves the notice addressed by a recipient URL.
func (r *NoticeRepository) FindByAlertToken(ctx context.Context, alertTokenID int64) (*models.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices WHERE alert_token_id = $1 ORDER BY created_at DESC LIMIT 1`
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, query, alertTokenID); err != nil {
		return nil, err
	}
	return &notice, nil
}

// ListByServer returns a server's notices newest first. A limit of zero means no limit.
func (r *NoticeRepository) ListByServer(ctx context.Context, serverAddress string, includeDismissed bool, limit int) ([]models.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices WHERE lower(server_address) = lower($1)`
	if !includeDismissed {
		query += ` AND dismissed = FALSE`
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	notices := make([]models.Notice, 0)
	if err := r.db.SelectContext(ctx, &notices, query, serverAddress); err != nil {
		return nil, fmt.Errorf("list server notices: %w", err)
	}
	return notices, nil
}

// CountActiveByServer counts undismissed notices.
func (r *NoticeRepository) CountActiveByServer(ctx context.Context, serverAddress string) (int, error) {
	const query = `SELECT COUNT(*) FROM notices WHERE lower(server_address) = lower($1) AND dismissed = FALSE`
	var total int
	if err := r.db.GetContext(ctx, &total, query, serverAddress); err != nil {
		return 0, fmt.Errorf("count active notices: %w", err)
	}
	return total, nil
}

// ListByRecipient returns a recipient's notices joined with the recipient's own view/sign state.
func (r *NoticeRepository) ListByRecipient(ctx context.Context, recipientAddress string) ([]models.RecipientNotice, error) {
	const query = `SELECT n.notice_id, n.case_id, n.case_number, n.alert_token_id, n.document_token_id,
       n.recipient_address, n.server_address, n.notice_type, n.issuing_agency, n.ipfs_hash, n.encryption_key,
       n.transaction_hash, n.block_number, n.chain_timestamp, n.accepted, n.accepted_at, n.acceptance_signature,
       n.dismissed, n.dismissed_at, n.created_at, n.updated_at,
       COALESCE(a.view_count, 0) > 0 AS viewed,
       COALESCE(a.signed, FALSE) AS signed,
       COALESCE(a.view_count, 0) AS view_count,
       a.signed_at
	FROM notices n
	LEFT JOIN notice_access a ON a.notice_id = n.notice_id AND lower(a.wallet_address) = lower(n.recipient_address)
	WHERE lower(n.recipient_address) = lower($1)
	ORDER BY n.created_at DESC`
	notices := make([]models.RecipientNotice, 0)
	if err := r.db.SelectContext(ctx, &notices, query, recipientAddress); err != nil {
		return nil, fmt.Errorf("list recipient notices: %w", err)
	}
	return notices, nil
}

// MarkAccepted stores the first acceptance only. It reports whether this call changed the row.
func (r *NoticeRepository) MarkAccepted(ctx context.Context, noticeID, signature string, acceptedAt time.Time) (bool, error) {
	const query = `UPDATE notices SET accepted = TRUE, accepted_at = $2, acceptance_signature = $3, updated_at = $2
	WHERE notice_id = $1 AND accepted = FALSE`
	res, err := r.db.ExecContext(ctx, query, noticeID, acceptedAt, signature)
	if err != nil {
		return false, fmt.Errorf("mark notice accepted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check accept rows: %w", err)
	}
	return affected > 0, nil
}

// SetDismissed flips the dismissal flag.
func (r *NoticeRepository) SetDismissed(ctx context.Context, noticeID string, dismissed bool, at time.Time) error {
	const query = `UPDATE notices
	SET dismissed = $2, dismissed_at = CASE WHEN $2 THEN $3::timestamptz ELSE NULL END, updated_at = $3
	WHERE notice_id = $1`
	res, err := r.db.ExecContext(ctx, query, noticeID, dismissed, at)
	if err != nil {
		return fmt.Errorf("set notice dismissed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check dismiss rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateChainProof fills block and timestamp learned from the chain.
func (r *NoticeRepository) UpdateChainProof(ctx context.Context, noticeID string, blockNumber int64, ts time.Time) error {
	const query = `UPDATE notices SET block_number = $2, chain_timestamp = $3, updated_at = NOW()
	WHERE notice_id = $1 AND block_number IS NULL`
	if _, err := r.db.ExecContext(ctx, query, noticeID, blockNumber, ts); err != nil {
		return fmt.Errorf("update chain proof: %w", err)
	}
	return nil
}
