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

const discrepancyColumns = `id, token_id, kind, notice_id, chain_owner, db_recipient, token_uri, detail, status, created_at, resolved_at`

// DiscrepancyRepository stores reconciliation findings for operator review.
type DiscrepancyRepository struct {
	db *sqlx.DB
}

// NewDiscrepancyRepository constructs the repository.
func NewDiscrepancyRepository(db *sqlx.DB) *DiscrepancyRepository {
	return &DiscrepancyRepository{db: db}
}

// Upsert records a finding. An open finding of the same kind for the same token is refreshed instead of duplicated.
func (r *DiscrepancyRepository) Upsert(ctx context.Context, d *models.Discrepancy) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.Status = models.DiscrepancyOpen
	query := `INSERT INTO reconciliation_discrepancies
	(id, token_id, kind, notice_id, chain_owner, db_recipient, token_uri, detail, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (token_id, kind) WHERE status = 'open' DO UPDATE SET
	  notice_id = EXCLUDED.notice_id,
	  chain_owner = EXCLUDED.chain_owner,
	  db_recipient = EXCLUDED.db_recipient,
	  token_uri = EXCLUDED.token_uri,
	  detail = EXCLUDED.detail
	RETURNING ` + discrepancyColumns
	if err := r.db.GetContext(ctx, d, query,
		d.ID, d.TokenID, d.Kind, d.NoticeID, d.ChainOwner, d.DBRecipient, d.TokenURI, d.Detail, d.Status, d.CreatedAt,
	); err != nil {
		return fmt.Errorf("upsert discrepancy: %w", err)
	}
	return nil
}

// List returns findings filtered by status, newest first. An empty status lists all.
func (r *DiscrepancyRepository) List(ctx context.Context, status models.DiscrepancyStatus, limit int) ([]models.Discrepancy, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	query := `SELECT ` + discrepancyColumns + ` FROM reconciliation_discrepancies`
	args := make([]interface{}, 0, 2)
	if status != "" {
		args = append(args, status)
		query += ` WHERE status = $1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	items := make([]models.Discrepancy, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list discrepancies: %w", err)
	}
	return items, nil
}

// Resolve closes an open finding.
func (r *DiscrepancyRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE reconciliation_discrepancies SET status = 'resolved', resolved_at = $2 WHERE id = $1 AND status = 'open'`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("resolve discrepancy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check resolve rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
