package models

import "time"

// BlobKind distinguishes thumbnails from full documents.
type BlobKind string

const (
	BlobKindAlertThumbnail BlobKind = "alert_thumbnail"
	BlobKindDocumentFull   BlobKind = "document_full"
)

// BlobBackend records where the bytes live.
type BlobBackend string

const (
	BlobBackendInline BlobBackend = "inline"
	BlobBackendDisk   BlobBackend = "disk"
)

// NoticeBlob is a stored thumbnail or document. A nil NoticeID marks an orphan awaiting attachment.
type NoticeBlob struct {
	ID         string      `db:"id" json:"id"`
	NoticeID   *string     `db:"notice_id" json:"noticeId,omitempty"`
	Kind       BlobKind    `db:"kind" json:"kind"`
	Backend    BlobBackend `db:"backend" json:"backend"`
	InlineData []byte      `db:"inline_data" json:"-"`
	Location   *string     `db:"location" json:"location,omitempty"`
	FilePath   *string     `db:"file_path" json:"-"`
	FileName   string      `db:"file_name" json:"fileName"`
	MimeType   string      `db:"mime_type" json:"mimeType"`
	SizeBytes  int64       `db:"size_bytes" json:"size"`
	SHA256     string      `db:"sha256" json:"sha256"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
}

// StorageRef identifies stored bytes to callers.
type StorageRef struct {
	ID       string      `json:"id"`
	NoticeID *string     `json:"noticeId,omitempty"`
	Kind     BlobKind    `json:"kind"`
	Backend  BlobBackend `json:"backend"`
	Location string      `json:"location,omitempty"`
	FileName string      `json:"fileName"`
	Size     int64       `json:"size"`
	MimeType string      `json:"mimeType"`
	SHA256   string      `json:"sha256"`
}

// Ref converts a row into its public reference.
func (b *NoticeBlob) Ref() StorageRef {
	ref := StorageRef{
		ID:       b.ID,
		NoticeID: b.NoticeID,
		Kind:     b.Kind,
		Backend:  b.Backend,
		FileName: b.FileName,
		Size:     b.SizeBytes,
		MimeType: b.MimeType,
		SHA256:   b.SHA256,
	}
	if b.Location != nil {
		ref.Location = *b.Location
	}
	return ref
}

// StoreBlobInput describes an upload.
type StoreBlobInput struct {
	NoticeID string
	Kind     BlobKind
	FileName string
	Data     []byte
	// RequireMime rejects uploads whose sniffed type differs.
	RequireMime string
}
