package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
)

const blobColumns = `id, notice_id, kind, backend, location, file_path, file_name, mime_type, size_bytes, sha256, created_at`

// BlobRepository stores document and thumbnail metadata, and inline thumbnail bytes.
type BlobRepository struct {
	db *sqlx.DB
}

// NewBlobRepository constructs the repository.
func NewBlobRepository(db *sqlx.DB) *BlobRepository {
	return &BlobRepository{db: db}
}

// Create stores a blob row.
func (r *BlobRepository) Create(ctx context.Context, blob *models.NoticeBlob) error {
	if blob.ID == "" {
		blob.ID = uuid.NewString()
	}
	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notice_blobs
	(id, notice_id, kind, backend, inline_data, location, file_path, file_name, mime_type, size_bytes, sha256, created_at)
	VALUES (:id, :notice_id, :kind, :backend, :inline_data, :location, :file_path, :file_name, :mime_type, :size_bytes, :sha256, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, blob); err != nil {
		return fmt.Errorf("create notice blob: %w", err)
	}
	return nil
}

// GetByID retrieves a blob including inline bytes.
func (r *BlobRepository) GetByID(ctx context.Context, id string) (*models.NoticeBlob, error) {
	query := `SELECT ` + blobColumns + `, inline_data FROM notice_blobs WHERE id = $1`
	var blob models.NoticeBlob
	if err := r.db.GetContext(ctx, &blob, query, id); err != nil {
		return nil, err
	}
	return &blob, nil
}

// GetByFileName retrieves a disk blob by its stored name.
func (r *BlobRepository) GetByFileName(ctx context.Context, fileName string) (*models.NoticeBlob, error) {
	query := `SELECT ` + blobColumns + `, inline_data FROM notice_blobs WHERE file_name = $1`
	var blob models.NoticeBlob
	if err := r.db.GetContext(ctx, &blob, query, fileName); err != nil {
		return nil, err
	}
	return &blob, nil
}

// LatestForNotice returns the newest blob of a kind attached to a notice.
func (r *BlobRepository) LatestForNotice(ctx context.Context, noticeID string, kind models.BlobKind) (*models.NoticeBlob, error) {
	query := `SELECT ` + blobColumns + ` FROM notice_blobs WHERE notice_id = $1 AND kind = $2 ORDER BY created_at DESC LIMIT 1`
	var blob models.NoticeBlob
	if err := r.db.GetContext(ctx, &blob, query, noticeID, kind); err != nil {
		return nil, err
	}
	return &blob, nil
}

// Attach links uploaded blobs to a notice. Blobs already owned by another notice are left alone.
func (r *BlobRepository) Attach(ctx context.Context, ids []string, noticeID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE notice_blobs SET notice_id = $1 WHERE id = ANY($2) AND (notice_id IS NULL OR notice_id = $1)`
	res, err := r.db.ExecContext(ctx, query, noticeID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("attach notice blobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check attach rows: %w", err)
	}
	return affected, nil
}

// ListOrphans returns blobs older than the cutoff that belong to no stored notice.
func (r *BlobRepository) ListOrphans(ctx context.Context, olderThan time.Time, limit int) ([]models.NoticeBlob, error) {
	if limit <= 0 {
		limit = 500
	}
	const query = `SELECT b.id, b.notice_id, b.kind, b.backend, b.location, b.file_path, b.file_name, b.mime_type, b.size_bytes, b.sha256, b.created_at
	FROM notice_blobs b
	WHERE b.created_at < $1
	  AND (b.notice_id IS NULL OR NOT EXISTS (SELECT 1 FROM notices n WHERE n.notice_id = b.notice_id))
	ORDER BY b.created_at ASC
	LIMIT $2`
	blobs := make([]models.NoticeBlob, 0)
	if err := r.db.SelectContext(ctx, &blobs, query, olderThan, limit); err != nil {
		return nil, fmt.Errorf("list orphan blobs: %w", err)
	}
	return blobs, nil
}

// Delete removes a blob row.
func (r *BlobRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM notice_blobs WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete notice blob: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check blob delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
