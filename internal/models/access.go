package models

import "time"

// AccessState is the per-wallet progress through a notice.
type AccessState string

const (
	AccessStateUnrequested AccessState = "unrequested"
	AccessStateViewed      AccessState = "viewed"
	AccessStateSigned      AccessState = "signed"
)

// Reasons reported with every access decision.
const (
	AccessReasonRecipient      = "recipient"
	AccessReasonServer         = "server"
	AccessReasonMismatch       = "wallet does not match recipient or server"
	AccessReasonInvalidAddress = "invalid wallet address"
	AccessReasonNotFound       = "notice not found"
)

// NoticeAccess is the view/sign record of one wallet for one notice.
type NoticeAccess struct {
	ID            string     `db:"id" json:"id"`
	NoticeID      string     `db:"notice_id" json:"noticeId"`
	WalletAddress string     `db:"wallet_address" json:"walletAddress"`
	FirstViewedAt *time.Time `db:"first_viewed_at" json:"firstViewedAt,omitempty"`
	LastViewedAt  *time.Time `db:"last_viewed_at" json:"lastViewedAt,omitempty"`
	ViewCount     int        `db:"view_count" json:"viewCount"`
	Signed        bool       `db:"signed" json:"signed"`
	SignedAt      *time.Time `db:"signed_at" json:"signedAt,omitempty"`
	Signature     *string    `db:"signature" json:"signature,omitempty"`
	IPAddress     *string    `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent     *string    `db:"user_agent" json:"userAgent,omitempty"`
}

// State reports where the wallet is in the Unrequested -> Viewed -> Signed progression.
func (a *NoticeAccess) State() AccessState {
	switch {
	case a == nil:
		return AccessStateUnrequested
	case a.Signed:
		return AccessStateSigned
	case a.ViewCount > 0:
		return AccessStateViewed
	default:
		return AccessStateUnrequested
	}
}

// AccessAttempt is one logged authorization check.
type AccessAttempt struct {
	ID              string    `db:"id" json:"id"`
	NoticeID        string    `db:"notice_id" json:"noticeId"`
	WalletAddress   string    `db:"wallet_address" json:"walletAddress"`
	AlertTokenID    *int64    `db:"alert_token_id" json:"alertTokenId,omitempty"`
	DocumentTokenID *int64    `db:"document_token_id" json:"documentTokenId,omitempty"`
	IsRecipient     bool      `db:"is_recipient" json:"isRecipient"`
	IsServer        bool      `db:"is_server" json:"isServer"`
	Granted         bool      `db:"granted" json:"granted"`
	Reason          string    `db:"reason" json:"reason"`
	IPAddress       string    `db:"ip_address" json:"ipAddress"`
	UserAgent       string    `db:"user_agent" json:"userAgent"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// AccessDecision is the outcome of authorizing a wallet against a notice.
type AccessDecision struct {
	IsRecipient bool   `json:"isRecipient"`
	IsServer    bool   `json:"isServer"`
	Granted     bool   `json:"granted"`
	Reason      string `json:"reason"`
}

// RequestMeta identifies the caller for audit rows.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// SignResult reports the stored signature time.
type SignResult struct {
	AlreadySigned bool      `json:"alreadySigned"`
	SignedAt      time.Time `json:"signedAt"`
}

// RecipientDocument is what an authorized wallet receives for a notice.
type RecipientDocument struct {
	NoticeID         string     `json:"noticeId"`
	AlertTokenID     *int64     `json:"alertTokenId,omitempty"`
	DocumentTokenID  *int64     `json:"documentTokenId,omitempty"`
	CaseNumber       string     `json:"caseNumber"`
	NoticeType       string     `json:"noticeType"`
	IssuingAgency    string     `json:"issuingAgency"`
	RecipientAddress string     `json:"recipientAddress"`
	ServerAddress    string     `json:"serverAddress"`
	IPFSHash         *string    `json:"ipfsHash,omitempty"`
	IPFSURL          *string    `json:"ipfsUrl,omitempty"`
	EncryptionKey    *string    `json:"encryptionKey,omitempty"`
	DocumentURL      *string    `json:"documentUrl,omitempty"`
	ThumbnailURL     *string    `json:"thumbnailUrl,omitempty"`
	IsRecipient      bool       `json:"isRecipient"`
	IsServer         bool       `json:"isServer"`
	AlreadySigned    bool       `json:"alreadySigned"`
	SignedAt         *time.Time `json:"signedAt,omitempty"`
}

// AcceptInput is the recipient's acknowledgement of a notice.
type AcceptInput struct {
	Signature string `json:"signature" validate:"required,max=1024"`
	IPAddress string `json:"ipAddress" validate:"max=64"`
	UserAgent string `json:"userAgent" validate:"max=512"`
}
