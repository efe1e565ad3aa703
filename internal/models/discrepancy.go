package models

import "time"

// DiscrepancyKind classifies a chain/database mismatch.
type DiscrepancyKind string

const (
	DiscrepancyMissingInDB      DiscrepancyKind = "missing_in_db"
	DiscrepancyOwnerMismatch    DiscrepancyKind = "owner_mismatch"
	DiscrepancyNotOnChain       DiscrepancyKind = "not_on_chain"
	DiscrepancyChainUnavailable DiscrepancyKind = "chain_unavailable"
)

// DiscrepancyStatus tracks operator review.
type DiscrepancyStatus string

const (
	DiscrepancyOpen     DiscrepancyStatus = "open"
	DiscrepancyResolved DiscrepancyStatus = "resolved"
)

// Discrepancy is a persisted reconciliation finding awaiting review.
type Discrepancy struct {
	ID          string            `db:"id" json:"id"`
	TokenID     int64             `db:"token_id" json:"tokenId"`
	Kind        DiscrepancyKind   `db:"kind" json:"kind"`
	NoticeID    *string           `db:"notice_id" json:"noticeId,omitempty"`
	ChainOwner  *string           `db:"chain_owner" json:"chainOwner,omitempty"`
	DBRecipient *string           `db:"db_recipient" json:"dbRecipient,omitempty"`
	TokenURI    *string           `db:"token_uri" json:"tokenUri,omitempty"`
	Detail      string            `db:"detail" json:"detail"`
	Status      DiscrepancyStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
	ResolvedAt  *time.Time        `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// TokenOutcome is the per-token reconciliation result. "ok" or a discrepancy kind.
type TokenOutcome string

const (
	TokenOutcomeOK TokenOutcome = "ok"
	// TokenOutcomeUnminted is a token id with neither a chain token nor a record.
	TokenOutcomeUnminted TokenOutcome = "unminted"
)

// ReconcileRequest selects which tokens to check. Either a token range or a block range.
type ReconcileRequest struct {
	FromTokenID *uint64 `json:"fromTokenId"`
	ToTokenID   *uint64 `json:"toTokenId"`
	FromBlock   *uint64 `json:"fromBlock"`
	ToBlock     *uint64 `json:"toBlock"`
	Apply       bool    `json:"apply"`
}

// ReconcileReport summarises one pass.
type ReconcileReport struct {
	Checked       int           `json:"checked"`
	Unminted      int           `json:"unminted"`
	OK            int           `json:"ok"`
	Inserted      int           `json:"inserted"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}
