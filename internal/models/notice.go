package models

import "time"

// CaseStatus tracks the lifecycle of a legal case.
type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "open"
	CaseStatusServed CaseStatus = "served"
	CaseStatusClosed CaseStatus = "closed"
)

// Case groups notices served under one case number by one server.
type Case struct {
	ID            string     `db:"id" json:"id"`
	CaseNumber    string     `db:"case_number" json:"caseNumber"`
	Status        CaseStatus `db:"status" json:"status"`
	ServerAddress string     `db:"server_address" json:"serverAddress"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// NoticeStatus is derived from the acceptance and dismissal flags.
type NoticeStatus string

const (
	NoticeStatusPending  NoticeStatus = "Pending"
	NoticeStatusAccepted NoticeStatus = "Accepted"
	NoticeStatusArchived NoticeStatus = "Archived"
)

// Notice is the persisted record of one served Alert/Document token pair.
type Notice struct {
	NoticeID            string     `db:"notice_id" json:"noticeId"`
	CaseID              *string    `db:"case_id" json:"caseId,omitempty"`
	CaseNumber          string     `db:"case_number" json:"caseNumber"`
	AlertTokenID        *int64     `db:"alert_token_id" json:"alertTokenId,omitempty"`
	DocumentTokenID     *int64     `db:"document_token_id" json:"documentTokenId,omitempty"`
	RecipientAddress    string     `db:"recipient_address" json:"recipientAddress"`
	ServerAddress       string     `db:"server_address" json:"serverAddress"`
	NoticeType          string     `db:"notice_type" json:"noticeType"`
	IssuingAgency       string     `db:"issuing_agency" json:"issuingAgency"`
	IPFSHash            *string    `db:"ipfs_hash" json:"ipfsHash,omitempty"`
	EncryptionKey       *string    `db:"encryption_key" json:"-"`
	TransactionHash     *string    `db:"transaction_hash" json:"transactionHash,omitempty"`
	BlockNumber         *int64     `db:"block_number" json:"blockNumber,omitempty"`
	ChainTimestamp      *time.Time `db:"chain_timestamp" json:"chainTimestamp,omitempty"`
	Accepted            bool       `db:"accepted" json:"accepted"`
	AcceptedAt          *time.Time `db:"accepted_at" json:"acceptedAt,omitempty"`
	AcceptanceSignature *string    `db:"acceptance_signature" json:"acceptanceSignature,omitempty"`
	Dismissed           bool       `db:"dismissed" json:"dismissed"`
	DismissedAt         *time.Time `db:"dismissed_at" json:"dismissedAt,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// Status derives the display status. Dismissal wins over acceptance.
func (n *Notice) Status() NoticeStatus {
	switch {
	case n.Dismissed:
		return NoticeStatusArchived
	case n.Accepted:
		return NoticeStatusAccepted
	default:
		return NoticeStatusPending
	}
}

// NoticeWithStatus decorates a notice with its derived status.
type NoticeWithStatus struct {
	Notice
	Status NoticeStatus `json:"status"`
}

// ServedStats summarises a server's notices.
type ServedStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Dismissed int `json:"dismissed"`
	Accepted  int `json:"accepted"`
	Pending   int `json:"pending"`
}

// RecentNotices is the server dashboard list.
type RecentNotices struct {
	Notices     []Notice `json:"notices"`
	TotalActive int      `json:"totalActive"`
}

// ServedNotices is every notice of a server with derived statuses.
type ServedNotices struct {
	Notices []NoticeWithStatus `json:"notices"`
	Stats   ServedStats        `json:"stats"`
}

// RecipientNotice is a notice as seen by its recipient, joined with the wallet's access state.
type RecipientNotice struct {
	Notice
	Viewed    bool       `db:"viewed" json:"viewed"`
	Signed    bool       `db:"signed" json:"signed"`
	ViewCount int        `db:"view_count" json:"viewCount"`
	SignedAt  *time.Time `db:"signed_at" json:"signedAt,omitempty"`
}

// CreateNoticeInput carries the fields accepted when recording a notice.
type CreateNoticeInput struct {
	NoticeID         string `json:"noticeId" validate:"omitempty,max=128"`
	CaseNumber       string `json:"caseNumber" validate:"required,max=128"`
	RecipientAddress string `json:"recipientAddress" validate:"required,tron_address"`
	ServerAddress    string `json:"serverAddress" validate:"required,tron_address"`
	NoticeType       string `json:"noticeType" validate:"max=128"`
	IssuingAgency    string `json:"issuingAgency" validate:"max=256"`
	IPFSHash         string `json:"ipfsHash" validate:"max=256"`
	EncryptionKey    string `json:"encryptionKey" validate:"max=1024"`
	AlertTokenID     *int64 `json:"alertTokenId" validate:"omitempty,min=0"`
	DocumentTokenID  *int64 `json:"documentTokenId" validate:"omitempty,min=0"`
	TransactionHash  string `json:"transactionHash" validate:"omitempty,hexadecimal,max=66"`
	// AttachmentIDs links blobs uploaded before the notice was recorded.
	AttachmentIDs []string `json:"attachmentIds" validate:"omitempty,max=10,dive,uuid"`
}

// AcceptResult reports the stored acceptance.
type AcceptResult struct {
	AlreadyAccepted bool      `json:"alreadyAccepted"`
	AcceptedAt      time.Time `json:"acceptedAt"`
}

// NoticeImages lists the links a client needs to render a notice.
type NoticeImages struct {
	AlertThumbnailURL      *string `json:"alertThumbnailUrl"`
	DocumentUnencryptedURL *string `json:"documentUnencryptedUrl"`
	CaseNumber             string  `json:"caseNumber"`
	RecipientAddress       string  `json:"recipientAddress"`
	Message                string  `json:"message,omitempty"`
}

// TransactionSource names where transaction data came from.
type TransactionSource string

const (
	TransactionSourceDatabase TransactionSource = "database"
	TransactionSourceChain    TransactionSource = "blockchain"
	TransactionSourceCache    TransactionSource = "cache"
)

// TransactionProof is the chain proof for a notice.
type TransactionProof struct {
	TransactionHash *string           `json:"transactionHash"`
	BlockNumber     *int64            `json:"blockNumber"`
	Timestamp       *time.Time        `json:"timestamp"`
	Source          TransactionSource `json:"source"`
	Message         string            `json:"message,omitempty"`
}
