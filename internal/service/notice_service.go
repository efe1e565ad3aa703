package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/export"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/jobs"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/tron"
)

type noticeRepository interface {
	UpsertWithCase(ctx context.Context, notice *models.Notice) (*models.Notice, error)
	GetByID(ctx context.Context, noticeID string) (*models.Notice, error)
	FindByAlertToken(ctx context.Context, alertTokenID int64) (*models.Notice, error)
	ListByServer(ctx context.Context, serverAddress string, includeDismissed bool, limit int) ([]models.Notice, error)
	CountActiveByServer(ctx context.Context, serverAddress string) (int, error)
	ListByRecipient(ctx context.Context, recipientAddress string) ([]models.RecipientNotice, error)
	MarkAccepted(ctx context.Context, noticeID, signature string, acceptedAt time.Time) (bool, error)
	SetDismissed(ctx context.Context, noticeID string, dismissed bool, at time.Time) error
	UpdateChainProof(ctx context.Context, noticeID string, blockNumber int64, ts time.Time) error
}

type noticeBlobStore interface {
	LatestForNotice(ctx context.Context, noticeID string, kind models.BlobKind) (*models.NoticeBlob, error)
	Attach(ctx context.Context, ids []string, noticeID string) (int64, error)
}

type blobLinker interface {
	BlobURL(blob *models.NoticeBlob) (string, error)
}

type noticeAccessReader interface {
	Get(ctx context.Context, noticeID, wallet string) (*models.NoticeAccess, error)
}

type chainTxReader interface {
	TransactionInfo(ctx context.Context, txHash string) (*tron.TxInfo, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// NoticeServiceConfig tunes listing and proof behaviour.
type NoticeServiceConfig struct {
	RecentLimit int
	TxCacheTTL  time.Duration
	ChainName   string
}

// NoticeServiceParams groups constructor dependencies.
type NoticeServiceParams struct {
	Repo      noticeRepository
	Blobs     noticeBlobStore
	Links     blobLinker
	Access    noticeAccessReader
	Chain     chainTxReader
	Verifier  jobEnqueuer
	Cache     *CacheService
	Metrics   *MetricsService
	CSV       csvRenderer
	PDF       pdfRenderer
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    NoticeServiceConfig
}

// NoticeService owns the canonical record of served notices.
type NoticeService struct {
	repo      noticeRepository
	blobs     noticeBlobStore
	links     blobLinker
	access    noticeAccessReader
	chain     chainTxReader
	verifier  jobEnqueuer
	cache     *CacheService
	metrics   *MetricsService
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       NoticeServiceConfig
}

// NewNoticeService constructs a NoticeService with defaults for optional collaborators.
func NewNoticeService(params NoticeServiceParams) *NoticeService {
	cfg := params.Config
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 50
	}
	if cfg.TxCacheTTL <= 0 {
		cfg.TxCacheTTL = 24 * time.Hour
	}
	if cfg.ChainName == "" {
		cfg.ChainName = "TRON"
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	svc := &NoticeService{
		repo:      params.Repo,
		blobs:     params.Blobs,
		links:     params.Links,
		access:    params.Access,
		chain:     params.Chain,
		verifier:  params.Verifier,
		cache:     params.Cache,
		metrics:   params.Metrics,
		csv:       params.CSV,
		pdf:       params.PDF,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
	}
	if svc.csv == nil {
		svc.csv = export.NewCSVExporter()
	}
	if svc.pdf == nil {
		svc.pdf = export.NewPDFExporter()
	}
	registerTronRules(svc.validator)
	return svc
}

// Create records a notice and its case. Re-submitting the same notice id merges instead of failing.
func (s *NoticeService) Create(ctx context.Context, req models.CreateNoticeInput) (*models.Notice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid notice payload")
	}
	recipient, err := tron.NormalizeAddress(req.RecipientAddress)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipientAddress must be a valid TRON address")
	}
	server, err := tron.NormalizeAddress(req.ServerAddress)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "serverAddress must be a valid TRON address")
	}

	notice := &models.Notice{
		NoticeID:         strings.TrimSpace(req.NoticeID),
		CaseNumber:       strings.TrimSpace(req.CaseNumber),
		AlertTokenID:     req.AlertTokenID,
		DocumentTokenID:  req.DocumentTokenID,
		RecipientAddress: recipient,
		ServerAddress:    server,
		NoticeType:       req.NoticeType,
		IssuingAgency:    req.IssuingAgency,
		IPFSHash:         optionalString(req.IPFSHash),
		EncryptionKey:    optionalString(req.EncryptionKey),
		TransactionHash:  optionalString(strings.TrimPrefix(strings.ToLower(req.TransactionHash), "0x")),
	}
	if notice.NoticeID == "" {
		notice.NoticeID = s.deriveNoticeID(req.AlertTokenID)
	}

	saved, err := s.repo.UpsertWithCase(ctx, notice)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save notice")
	}
	s.metrics.NoticeCreated()

	if len(req.AttachmentIDs) > 0 && s.blobs != nil {
		attached, err := s.blobs.Attach(ctx, req.AttachmentIDs, saved.NoticeID)
		switch {
		case err != nil:
			s.logger.Warn("failed to attach uploads", zap.String("notice_id", saved.NoticeID), zap.Strings("blob_ids", req.AttachmentIDs), zap.Error(err))
		case attached < int64(len(req.AttachmentIDs)):
			s.logger.Warn("some uploads were not attached", zap.String("notice_id", saved.NoticeID), zap.Strings("blob_ids", req.AttachmentIDs), zap.Int64("attached", attached))
		}
	}

	s.enqueueVerification(saved)
	return saved, nil
}

func (s *NoticeService) deriveNoticeID(alertTokenID *int64) string {
	if alertTokenID != nil {
		return "alert-" + strconv.FormatInt(*alertTokenID, 10)
	}
	return "N" + strconv.FormatInt(s.now().UnixMilli(), 10)
}

func (s *NoticeService) enqueueVerification(notice *models.Notice) {
	if s.verifier == nil {
		return
	}
	tokens := make([]uint64, 0, 2)
	for _, id := range []*int64{notice.AlertTokenID, notice.DocumentTokenID} {
		if id != nil && *id >= 0 {
			tokens = append(tokens, uint64(*id))
		}
	}
	if len(tokens) == 0 {
		return
	}
	job := jobs.Job{
		ID:      notice.NoticeID,
		Type:    JobTypeVerifyNotice,
		Payload: VerifyNoticePayload{NoticeID: notice.NoticeID, TokenIDs: tokens},
	}
	if err := s.verifier.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue chain verification", zap.String("notice_id", notice.NoticeID), zap.Error(err))
	}
}

// Get returns one notice.
func (s *NoticeService) Get(ctx context.Context, noticeID string) (*models.Notice, error) {
	noticeID = strings.TrimSpace(noticeID)
	if noticeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "noticeId is required")
	}
	notice, err := s.repo.GetByID(ctx, noticeID)
	if err != nil {
		return nil, notFoundOr(err, "notice not found", "failed to load notice")
	}
	return notice, nil
}

// FindByAlertToken resolves a notice from the alert token a recipient was served.
func (s *NoticeService) FindByAlertToken(ctx context.Context, alertTokenID int64) (*models.Notice, error) {
	notice, err := s.repo.FindByAlertToken(ctx, alertTokenID)
	if err != nil {
		return nil, notFoundOr(err, "notice not found", "failed to load notice")
	}
	return notice, nil
}

// MarkAccepted stores the first acceptance. Later calls report the original acceptance.
func (s *NoticeService) MarkAccepted(ctx context.Context, noticeID, signature string) (*models.AcceptResult, error) {
	notice, err := s.Get(ctx, noticeID)
	if err != nil {
		return nil, err
	}
	if notice.Accepted {
		return acceptedResult(notice), nil
	}

	now := s.now()
	applied, err := s.repo.MarkAccepted(ctx, notice.NoticeID, signature, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record acceptance")
	}
	if applied {
		return &models.AcceptResult{AlreadyAccepted: false, AcceptedAt: now}, nil
	}

	// Lost a race with another accept; report the stored one.
	current, err := s.Get(ctx, notice.NoticeID)
	if err != nil {
		return nil, err
	}
	return acceptedResult(current), nil
}

func acceptedResult(notice *models.Notice) *models.AcceptResult {
	result := &models.AcceptResult{AlreadyAccepted: true}
	if notice.AcceptedAt != nil {
		result.AcceptedAt = *notice.AcceptedAt
	}
	return result
}

// Dismiss hides a notice from the server's recent list.
func (s *NoticeService) Dismiss(ctx context.Context, noticeID, serverAddress string) error {
	return s.setDismissed(ctx, noticeID, serverAddress, true)
}

// Restore undoes Dismiss.
func (s *NoticeService) Restore(ctx context.Context, noticeID, serverAddress string) error {
	return s.setDismissed(ctx, noticeID, serverAddress, false)
}

func (s *NoticeService) setDismissed(ctx context.Context, noticeID, serverAddress string, dismissed bool) error {
	server, err := requireWallet("serverAddress", serverAddress)
	if err != nil {
		return err
	}
	notice, err := s.Get(ctx, noticeID)
	if err != nil {
		return err
	}
	if !tron.AddressesEqual(notice.ServerAddress, server) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the serving address can change this notice")
	}
	if err := s.repo.SetDismissed(ctx, notice.NoticeID, dismissed, s.now()); err != nil {
		return notFoundOr(err, "notice not found", "failed to update notice")
	}
	return nil
}

// ListRecent returns the server's undismissed notices, newest first.
func (s *NoticeService) ListRecent(ctx context.Context, serverAddress string) (*models.RecentNotices, error) {
	server, err := requireWallet("serverAddress", serverAddress)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	notices, err := s.repo.ListByServer(ctx, server, false, s.cfg.RecentLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notices")
	}
	total, err := s.repo.CountActiveByServer(ctx, server)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notices")
	}
	s.metrics.ObserveDBQuery("notices_recent", time.Since(start))
	return &models.RecentNotices{Notices: notices, TotalActive: total}, nil
}

// ListAll returns every notice of the server with derived statuses and totals.
func (s *NoticeService) ListAll(ctx context.Context, serverAddress string) (*models.ServedNotices, error) {
	server, err := requireWallet("serverAddress", serverAddress)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	notices, err := s.repo.ListByServer(ctx, server, true, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notices")
	}
	s.metrics.ObserveDBQuery("notices_all_served", time.Since(start))

	result := &models.ServedNotices{Notices: make([]models.NoticeWithStatus, 0, len(notices))}
	for _, n := range notices {
		status := n.Status()
		result.Notices = append(result.Notices, models.NoticeWithStatus{Notice: n, Status: status})
		result.Stats.Total++
		if n.Dismissed {
			result.Stats.Dismissed++
		} else {
			result.Stats.Active++
		}
		if n.Accepted {
			result.Stats.Accepted++
		} else {
			result.Stats.Pending++
		}
	}
	return result, nil
}

// ListForRecipient returns the notices served on a wallet with that wallet's view/sign state.
func (s *NoticeService) ListForRecipient(ctx context.Context, recipientAddress string) ([]models.RecipientNotice, error) {
	recipient, err := requireWallet("address", recipientAddress)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	notices, err := s.repo.ListByRecipient(ctx, recipient)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recipient notices")
	}
	s.metrics.ObserveDBQuery("notices_recipient", time.Since(start))
	return notices, nil
}

// Images returns the links needed to render the notice. Missing uploads are not an error.
func (s *NoticeService) Images(ctx context.Context, noticeID string) (*models.NoticeImages, error) {
	notice, err := s.Get(ctx, noticeID)
	if err != nil {
		return nil, err
	}
	images := &models.NoticeImages{CaseNumber: notice.CaseNumber, RecipientAddress: notice.RecipientAddress}
	images.AlertThumbnailURL = s.blobURL(ctx, notice.NoticeID, models.BlobKindAlertThumbnail)
	images.DocumentUnencryptedURL = s.blobURL(ctx, notice.NoticeID, models.BlobKindDocumentFull)
	if images.AlertThumbnailURL == nil && images.DocumentUnencryptedURL == nil {
		images.Message = "No images uploaded for this notice yet"
	}
	return images, nil
}

func (s *NoticeService) blobURL(ctx context.Context, noticeID string, kind models.BlobKind) *string {
	if s.blobs == nil {
		return nil
	}
	return latestBlobURL(ctx, s.blobs, s.links, s.logger, noticeID, kind)
}

// Transaction returns the chain proof of a notice. Stored data wins; the chain is asked only
// for what is missing, and a chain failure degrades to the stored data. The cache holds chain
// answers only until they are written to the row.
func (s *NoticeService) Transaction(ctx context.Context, noticeID string) (*models.TransactionProof, error) {
	notice, err := s.Get(ctx, noticeID)
	if err != nil {
		return nil, err
	}
	proof := &models.TransactionProof{
		TransactionHash: notice.TransactionHash,
		BlockNumber:     notice.BlockNumber,
		Timestamp:       notice.ChainTimestamp,
		Source:          models.TransactionSourceDatabase,
	}
	if notice.TransactionHash == nil || *notice.TransactionHash == "" {
		proof.Message = "No transaction recorded for this notice"
		return proof, nil
	}
	if notice.BlockNumber != nil && notice.ChainTimestamp != nil {
		return proof, nil
	}

	cacheKey := "tx:" + *notice.TransactionHash
	var cached tron.TxInfo
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		applyTxInfo(proof, &cached, models.TransactionSourceCache)
		return proof, nil
	}

	if s.chain == nil {
		proof.Message = s.cfg.ChainName + " lookups are not configured"
		return proof, nil
	}
	info, err := s.chain.TransactionInfo(ctx, *notice.TransactionHash)
	if err != nil {
		if errors.Is(err, tron.ErrTxNotFound) {
			proof.Message = "Transaction not yet confirmed"
			return proof, nil
		}
		s.logger.Warn("chain transaction lookup failed", zap.String("notice_id", notice.NoticeID), zap.Error(err))
		proof.Message = s.cfg.ChainName + " unavailable, showing stored data"
		return proof, nil
	}

	applyTxInfo(proof, info, models.TransactionSourceChain)
	if err := s.repo.UpdateChainProof(ctx, notice.NoticeID, int64(info.BlockNumber), info.Timestamp); err != nil {
		s.logger.Warn("failed to store chain proof", zap.String("notice_id", notice.NoticeID), zap.Error(err))
		_ = s.cache.Set(ctx, cacheKey, info, s.cfg.TxCacheTTL)
		return proof, nil
	}
	// Drop any copy cached by an earlier failed write.
	_ = s.cache.Invalidate(ctx, cacheKey)
	return proof, nil
}

func applyTxInfo(proof *models.TransactionProof, info *tron.TxInfo, source models.TransactionSource) {
	block := int64(info.BlockNumber)
	ts := info.Timestamp
	proof.BlockNumber = &block
	proof.Timestamp = &ts
	proof.Source = source
}

// ExportServed renders every notice of the server as CSV.
func (s *NoticeService) ExportServed(ctx context.Context, serverAddress string) ([]byte, error) {
	served, err := s.ListAll(ctx, serverAddress)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"notice_id", "case_number", "recipient_address", "alert_token_id", "document_token_id", "notice_type", "issuing_agency", "status", "created_at", "accepted_at"},
		Rows:    make([]map[string]string, 0, len(served.Notices)),
	}
	for _, n := range served.Notices {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"notice_id":         n.NoticeID,
			"case_number":       n.CaseNumber,
			"recipient_address": n.RecipientAddress,
			"alert_token_id":    formatTokenID(n.AlertTokenID),
			"document_token_id": formatTokenID(n.DocumentTokenID),
			"notice_type":       n.NoticeType,
			"issuing_agency":    n.IssuingAgency,
			"status":            string(n.Status),
			"created_at":        n.CreatedAt.UTC().Format(time.RFC3339),
			"accepted_at":       formatTime(n.AcceptedAt),
		})
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return data, nil
}

// Receipt renders a proof-of-service PDF for the serving address.
func (s *NoticeService) Receipt(ctx context.Context, noticeID, serverAddress string) ([]byte, error) {
	server, err := requireWallet("serverAddress", serverAddress)
	if err != nil {
		return nil, err
	}
	notice, err := s.Get(ctx, noticeID)
	if err != nil {
		return nil, err
	}
	if !tron.AddressesEqual(notice.ServerAddress, server) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the serving address can download the receipt")
	}

	serviceFields := []export.Field{
		{Label: "Notice ID", Value: notice.NoticeID},
		{Label: "Case number", Value: notice.CaseNumber},
		{Label: "Notice type", Value: notice.NoticeType},
		{Label: "Issuing agency", Value: notice.IssuingAgency},
		{Label: "Served by", Value: notice.ServerAddress},
		{Label: "Served on", Value: notice.RecipientAddress},
		{Label: "Recorded at", Value: notice.CreatedAt.UTC().Format(time.RFC3339)},
	}
	chainFields := []export.Field{
		{Label: "Alert token", Value: formatTokenID(notice.AlertTokenID)},
		{Label: "Document token", Value: formatTokenID(notice.DocumentTokenID)},
		{Label: "Transaction", Value: derefString(notice.TransactionHash)},
		{Label: "Block", Value: formatTokenID(notice.BlockNumber)},
		{Label: "Block time", Value: formatTime(notice.ChainTimestamp)},
	}
	acceptance := []export.Field{
		{Label: "Status", Value: string(notice.Status())},
		{Label: "Accepted at", Value: formatTime(notice.AcceptedAt)},
		{Label: "Signature", Value: derefString(notice.AcceptanceSignature)},
	}
	if s.access != nil {
		access, err := s.access.Get(ctx, notice.NoticeID, notice.RecipientAddress)
		switch {
		case err == nil:
			acceptance = append(acceptance,
				export.Field{Label: "First viewed", Value: formatTime(access.FirstViewedAt)},
				export.Field{Label: "Views", Value: strconv.Itoa(access.ViewCount)},
			)
		case !errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("failed to load recipient access for receipt", zap.String("notice_id", notice.NoticeID), zap.Error(err))
		}
	}

	doc := export.Document{
		Title:    "Proof of Service",
		Subtitle: fmt.Sprintf("Case %s", notice.CaseNumber),
		Sections: []export.Section{
			{Heading: "Service", Fields: serviceFields},
			{Heading: s.cfg.ChainName + " record", Fields: chainFields},
			{Heading: "Recipient acknowledgement", Fields: acceptance},
		},
		Footer:      "Generated from the notice record and on-chain data.",
		GeneratedAt: s.now(),
	}
	data, err := s.pdf.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatTokenID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
