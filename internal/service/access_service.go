package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/tron"
)

type accessNoticeReader interface {
	GetByID(ctx context.Context, noticeID string) (*models.Notice, error)
	FindByAlertToken(ctx context.Context, alertTokenID int64) (*models.Notice, error)
}

type accessRepository interface {
	Get(ctx context.Context, noticeID, wallet string) (*models.NoticeAccess, error)
	RecordView(ctx context.Context, noticeID, wallet string, meta models.RequestMeta, at time.Time) (*models.NoticeAccess, error)
	Sign(ctx context.Context, noticeID, wallet, signature string, meta models.RequestMeta, at time.Time) (*models.NoticeAccess, bool, error)
	LogAttempt(ctx context.Context, attempt *models.AccessAttempt) error
	ListAttempts(ctx context.Context, noticeID string, limit int) ([]models.AccessAttempt, error)
}

type noticeAcceptor interface {
	MarkAccepted(ctx context.Context, noticeID, signature string) (*models.AcceptResult, error)
}

type blobFinder interface {
	LatestForNotice(ctx context.Context, noticeID string, kind models.BlobKind) (*models.NoticeBlob, error)
}

// AccessServiceParams groups constructor dependencies.
type AccessServiceParams struct {
	Notices     accessNoticeReader
	Repo        accessRepository
	Acceptor    noticeAcceptor
	Blobs       blobFinder
	Links       blobLinker
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	IPFSGateway string
}

// AccessService decides which wallets may see a notice and tracks each wallet's view and
// signature.
type AccessService struct {
	notices   accessNoticeReader
	repo      accessRepository
	acceptor  noticeAcceptor
	blobs     blobFinder
	links     blobLinker
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	gateway   string
	now       func() time.Time
}

// NewAccessService constructs an AccessService.
func NewAccessService(params AccessServiceParams) *AccessService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	gateway := params.IPFSGateway
	if gateway != "" && !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &AccessService{
		notices:   params.Notices,
		repo:      params.Repo,
		acceptor:  params.Acceptor,
		blobs:     params.Blobs,
		links:     params.Links,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		gateway:   gateway,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Authorize checks wallet against the notice's recipient and server. Every call is recorded.
// A missing notice yields a denied decision together with a not-found error.
func (s *AccessService) Authorize(ctx context.Context, wallet, noticeID string, meta models.RequestMeta) (*models.AccessDecision, error) {
	notice, err := s.notices.GetByID(ctx, strings.TrimSpace(noticeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			decision := &models.AccessDecision{Reason: models.AccessReasonNotFound}
			s.record(ctx, wallet, &models.Notice{NoticeID: noticeID}, decision, meta)
			return decision, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}
	return s.decide(ctx, wallet, notice, meta), nil
}

func (s *AccessService) decide(ctx context.Context, wallet string, notice *models.Notice, meta models.RequestMeta) *models.AccessDecision {
	decision := &models.AccessDecision{}
	decision.IsRecipient = tron.AddressesEqual(wallet, notice.RecipientAddress)
	decision.IsServer = tron.AddressesEqual(wallet, notice.ServerAddress)
	decision.Granted = decision.IsRecipient || decision.IsServer
	switch {
	case decision.IsRecipient:
		decision.Reason = models.AccessReasonRecipient
	case decision.IsServer:
		decision.Reason = models.AccessReasonServer
	case !tron.IsValidAddress(strings.TrimSpace(wallet)):
		decision.Reason = models.AccessReasonInvalidAddress
	default:
		decision.Reason = models.AccessReasonMismatch
	}
	s.record(ctx, wallet, notice, decision, meta)
	return decision
}

func (s *AccessService) record(ctx context.Context, wallet string, notice *models.Notice, decision *models.AccessDecision, meta models.RequestMeta) {
	s.metrics.AccessDecision(decision.Granted)
	fields := []zap.Field{
		zap.String("notice_id", notice.NoticeID),
		zap.String("wallet", wallet),
		zap.Bool("granted", decision.Granted),
		zap.String("reason", decision.Reason),
		zap.String("ip", meta.IPAddress),
	}
	if notice.AlertTokenID != nil {
		fields = append(fields, zap.Int64("alert_token_id", *notice.AlertTokenID))
	}
	if notice.DocumentTokenID != nil {
		fields = append(fields, zap.Int64("document_token_id", *notice.DocumentTokenID))
	}
	if decision.Granted {
		s.logger.Info("notice access granted", fields...)
	} else {
		s.logger.Warn("notice access denied", fields...)
	}

	attempt := &models.AccessAttempt{
		NoticeID:        notice.NoticeID,
		WalletAddress:   wallet,
		AlertTokenID:    notice.AlertTokenID,
		DocumentTokenID: notice.DocumentTokenID,
		IsRecipient:     decision.IsRecipient,
		IsServer:        decision.IsServer,
		Granted:         decision.Granted,
		Reason:          decision.Reason,
		IPAddress:       meta.IPAddress,
		UserAgent:       meta.UserAgent,
		CreatedAt:       s.now(),
	}
	if err := s.repo.LogAttempt(ctx, attempt); err != nil {
		s.logger.Warn("failed to record access attempt", zap.String("notice_id", notice.NoticeID), zap.Error(err))
	}
}

// RecordView moves wallet to Viewed, counting repeat views.
func (s *AccessService) RecordView(ctx context.Context, noticeID, wallet string, meta models.RequestMeta) (*models.NoticeAccess, error) {
	access, err := s.repo.RecordView(ctx, noticeID, wallet, meta, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record view")
	}
	return access, nil
}

// Sign moves wallet to Signed. Once signed, later calls return the original time.
func (s *AccessService) Sign(ctx context.Context, noticeID, wallet, signature string, meta models.RequestMeta) (*models.SignResult, error) {
	access, applied, err := s.repo.Sign(ctx, noticeID, wallet, signature, meta, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record signature")
	}
	result := &models.SignResult{AlreadySigned: !applied}
	if access.SignedAt != nil {
		result.SignedAt = *access.SignedAt
	}
	return result, nil
}

// State reports where wallet is in the view/sign progression for a notice.
func (s *AccessService) State(ctx context.Context, noticeID, wallet string) (models.AccessState, error) {
	access, err := s.repo.Get(ctx, noticeID, wallet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AccessStateUnrequested, nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load access state")
	}
	return access.State(), nil
}

// RecipientDocument releases a notice's document to its recipient or server. Only the
// recipient's requests count as views.
func (s *AccessService) RecipientDocument(ctx context.Context, wallet string, alertTokenID int64, meta models.RequestMeta) (*models.RecipientDocument, error) {
	notice, decision, err := s.gate(ctx, wallet, alertTokenID, meta)
	if err != nil {
		return nil, err
	}

	var access *models.NoticeAccess
	if decision.IsRecipient {
		access, err = s.RecordView(ctx, notice.NoticeID, notice.RecipientAddress, meta)
		if err != nil {
			return nil, err
		}
	} else {
		access, err = s.repo.Get(ctx, notice.NoticeID, notice.RecipientAddress)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load access state")
		}
	}

	doc := &models.RecipientDocument{
		NoticeID:         notice.NoticeID,
		AlertTokenID:     notice.AlertTokenID,
		DocumentTokenID:  notice.DocumentTokenID,
		CaseNumber:       notice.CaseNumber,
		NoticeType:       notice.NoticeType,
		IssuingAgency:    notice.IssuingAgency,
		RecipientAddress: notice.RecipientAddress,
		ServerAddress:    notice.ServerAddress,
		IPFSHash:         notice.IPFSHash,
		EncryptionKey:    notice.EncryptionKey,
		IsRecipient:      decision.IsRecipient,
		IsServer:         decision.IsServer,
	}
	if notice.IPFSHash != nil && s.gateway != "" {
		link := s.gateway + *notice.IPFSHash
		doc.IPFSURL = &link
	}
	if access != nil && access.Signed {
		doc.AlreadySigned = true
		doc.SignedAt = access.SignedAt
	}
	doc.DocumentURL = s.link(ctx, notice.NoticeID, models.BlobKindDocumentFull)
	doc.ThumbnailURL = s.link(ctx, notice.NoticeID, models.BlobKindAlertThumbnail)
	return doc, nil
}

// Accept records the recipient's signature and marks the notice accepted. Repeat calls return
// the original signature time.
func (s *AccessService) Accept(ctx context.Context, wallet string, alertTokenID int64, in models.AcceptInput, meta models.RequestMeta) (*models.SignResult, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, validationError(err, "invalid acceptance payload")
	}
	notice, decision, err := s.gate(ctx, wallet, alertTokenID, meta)
	if err != nil {
		return nil, err
	}
	if !decision.IsRecipient {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the recipient can accept this notice")
	}

	if in.IPAddress != "" {
		meta.IPAddress = in.IPAddress
	}
	if in.UserAgent != "" {
		meta.UserAgent = in.UserAgent
	}
	result, err := s.Sign(ctx, notice.NoticeID, notice.RecipientAddress, in.Signature, meta)
	if err != nil {
		return nil, err
	}
	if s.acceptor != nil {
		if _, err := s.acceptor.MarkAccepted(ctx, notice.NoticeID, in.Signature); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Attempts lists the authorization log of a notice for its server.
func (s *AccessService) Attempts(ctx context.Context, noticeID, serverAddress string, limit int) ([]models.AccessAttempt, error) {
	server, err := requireWallet("serverAddress", serverAddress)
	if err != nil {
		return nil, err
	}
	notice, err := s.notices.GetByID(ctx, noticeID)
	if err != nil {
		return nil, notFoundOr(err, "notice not found", "failed to load notice")
	}
	if !tron.AddressesEqual(notice.ServerAddress, server) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the serving address can read the access log")
	}
	attempts, err := s.repo.ListAttempts(ctx, notice.NoticeID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access attempts")
	}
	return attempts, nil
}

func (s *AccessService) gate(ctx context.Context, wallet string, alertTokenID int64, meta models.RequestMeta) (*models.Notice, *models.AccessDecision, error) {
	notice, err := s.notices.FindByAlertToken(ctx, alertTokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			decision := &models.AccessDecision{Reason: models.AccessReasonNotFound}
			s.record(ctx, wallet, &models.Notice{NoticeID: "alert-" + strconv.FormatInt(alertTokenID, 10), AlertTokenID: &alertTokenID}, decision, meta)
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}
	decision := s.decide(ctx, wallet, notice, meta)
	if !decision.Granted {
		if decision.Reason == models.AccessReasonInvalidAddress {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "address must be a valid TRON address")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}
	return notice, decision, nil
}

func (s *AccessService) link(ctx context.Context, noticeID string, kind models.BlobKind) *string {
	if s.blobs == nil {
		return nil
	}
	return latestBlobURL(ctx, s.blobs, s.links, s.logger, noticeID, kind)
}
