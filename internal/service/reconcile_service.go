package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/jobs"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/tron"
)

// JobTypeVerifyNotice is the queue job that checks a freshly recorded notice against the chain.
const JobTypeVerifyNotice = "verify_notice"

// VerifyNoticePayload names the tokens to check after a notice is recorded.
type VerifyNoticePayload struct {
	NoticeID string
	TokenIDs []uint64
}

type chainReader interface {
	OwnerOf(ctx context.Context, tokenID uint64) (string, error)
	TokenURI(ctx context.Context, tokenID uint64) (string, error)
	TransferEvents(ctx context.Context, fromBlock, toBlock uint64) ([]tron.TransferEvent, error)
	LatestBlock(ctx context.Context) (uint64, error)
}

type reconcileNoticeStore interface {
	FindByTokenID(ctx context.Context, tokenID int64) (*models.Notice, error)
	InsertIfAbsent(ctx context.Context, notice *models.Notice) (bool, error)
}

type discrepancyStore interface {
	Upsert(ctx context.Context, d *models.Discrepancy) error
	List(ctx context.Context, status models.DiscrepancyStatus, limit int) ([]models.Discrepancy, error)
	Resolve(ctx context.Context, id string, at time.Time) error
}

// ReconcileServiceConfig tunes reconciliation passes.
type ReconcileServiceConfig struct {
	Workers           int
	Interval          time.Duration
	BlockWindow       uint64
	MaxTokenRange     uint64
	AssumeOddEvenPair bool
	ServerWallet      string
}

// ReconcileService compares minted tokens with stored notices. Findings are persisted for review;
// stored notices are never modified.
type ReconcileService struct {
	chain   chainReader
	notices reconcileNoticeStore
	store   discrepancyStore
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	cfg     ReconcileServiceConfig
}

type tokenCheck struct {
	tokenID     uint64
	outcome     models.TokenOutcome
	discrepancy *models.Discrepancy
	inserted    bool
}

// NewReconcileService constructs a ReconcileService.
func NewReconcileService(chain chainReader, notices reconcileNoticeStore, store discrepancyStore, metrics *MetricsService, cfg ReconcileServiceConfig, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BlockWindow == 0 {
		cfg.BlockWindow = 28800
	}
	if cfg.MaxTokenRange == 0 {
		cfg.MaxTokenRange = 10000
	}
	return &ReconcileService{
		chain:   chain,
		notices: notices,
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		cfg:     cfg,
	}
}

// Reconcile runs a pass over a token range or a block range.
func (s *ReconcileService) Reconcile(ctx context.Context, req models.ReconcileRequest) (*models.ReconcileReport, error) {
	switch {
	case req.FromTokenID != nil || req.ToTokenID != nil:
		if req.FromTokenID == nil || req.ToTokenID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "fromTokenId and toTokenId are both required")
		}
		return s.ReconcileRange(ctx, *req.FromTokenID, *req.ToTokenID, req.Apply)
	case req.FromBlock != nil:
		var to uint64
		if req.ToBlock != nil {
			to = *req.ToBlock
		}
		return s.ReconcileEvents(ctx, *req.FromBlock, to, req.Apply)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide a token range or a block range")
	}
}

// ReconcileRange checks every token id in [from, to].
func (s *ReconcileService) ReconcileRange(ctx context.Context, from, to uint64, apply bool) (*models.ReconcileReport, error) {
	if err := s.checkApply(apply); err != nil {
		return nil, err
	}
	if to < from {
		return nil, appErrors.Clone(appErrors.ErrValidation, "toTokenId must not be below fromTokenId")
	}
	if to-from+1 > s.cfg.MaxTokenRange {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("token range is limited to %d ids", s.cfg.MaxTokenRange))
	}
	ids := make([]uint64, 0, to-from+1)
	for id := from; id <= to; id++ {
		ids = append(ids, id)
		if id == ^uint64(0) {
			break
		}
	}
	return s.run(ctx, ids, apply)
}

// ReconcileEvents checks every token that appears in a Transfer log between the blocks. A zero
// toBlock means the chain head.
func (s *ReconcileService) ReconcileEvents(ctx context.Context, fromBlock, toBlock uint64, apply bool) (*models.ReconcileReport, error) {
	if err := s.checkApply(apply); err != nil {
		return nil, err
	}
	if toBlock == 0 {
		head, err := s.chain.LatestBlock(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBlockchainUnavailable.Code, appErrors.ErrBlockchainUnavailable.Status, "failed to read chain head")
		}
		toBlock = head
	}
	if toBlock < fromBlock {
		return nil, appErrors.Clone(appErrors.ErrValidation, "toBlock must not be below fromBlock")
	}
	events, err := s.chain.TransferEvents(ctx, fromBlock, toBlock)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBlockchainUnavailable.Code, appErrors.ErrBlockchainUnavailable.Status, "failed to read transfer events")
	}
	seen := make(map[uint64]struct{}, len(events))
	ids := make([]uint64, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.TokenID]; ok {
			continue
		}
		seen[ev.TokenID] = struct{}{}
		ids = append(ids, ev.TokenID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return s.run(ctx, ids, apply)
}

// ReconcileRecent scans the configured trailing block window.
func (s *ReconcileService) ReconcileRecent(ctx context.Context) (*models.ReconcileReport, error) {
	head, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBlockchainUnavailable.Code, appErrors.ErrBlockchainUnavailable.Status, "failed to read chain head")
	}
	var from uint64
	if head > s.cfg.BlockWindow {
		from = head - s.cfg.BlockWindow
	}
	return s.ReconcileEvents(ctx, from, head, false)
}

// checkApply refuses apply mode when reconstructed notices would have no usable server.
func (s *ReconcileService) checkApply(apply bool) error {
	if apply && !tron.IsValidAddress(s.cfg.ServerWallet) {
		return appErrors.Clone(appErrors.ErrValidation, "apply mode requires SERVER_WALLET to be a valid TRON address")
	}
	return nil
}

func (s *ReconcileService) run(ctx context.Context, ids []uint64, apply bool) (*models.ReconcileReport, error) {
	report := &models.ReconcileReport{StartedAt: s.now(), Discrepancies: make([]models.Discrepancy, 0)}

	pool := pond.NewResultPool[tokenCheck](s.cfg.Workers)
	tasks := make([]pond.Result[tokenCheck], 0, len(ids))
	for _, id := range ids {
		tokenID := id
		tasks = append(tasks, pool.SubmitErr(func() (tokenCheck, error) {
			return s.checkToken(ctx, tokenID, apply)
		}))
	}

	var firstErr error
	for _, task := range tasks {
		check, err := task.Wait()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		report.Checked++
		s.metrics.ReconcileOutcome(check.outcome)
		switch check.outcome {
		case models.TokenOutcomeOK:
			report.OK++
		case models.TokenOutcomeUnminted:
			report.Unminted++
		}
		if check.inserted {
			report.Inserted++
		}
		if check.discrepancy != nil {
			report.Discrepancies = append(report.Discrepancies, *check.discrepancy)
		}
	}
	pool.StopAndWait()
	report.FinishedAt = s.now()

	if firstErr != nil {
		return report, appErrors.Wrap(firstErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reconciliation aborted")
	}
	s.logger.Info("reconciliation pass finished",
		zap.Int("checked", report.Checked),
		zap.Int("ok", report.OK),
		zap.Int("discrepancies", len(report.Discrepancies)),
		zap.Int("inserted", report.Inserted),
		zap.Bool("apply", apply),
	)
	return report, nil
}

// checkToken classifies one token. Only database failures are returned as errors; chain failures
// become chain_unavailable findings.
func (s *ReconcileService) checkToken(ctx context.Context, tokenID uint64, apply bool) (tokenCheck, error) {
	check := tokenCheck{tokenID: tokenID, outcome: models.TokenOutcomeOK}

	notice, err := s.notices.FindByTokenID(ctx, int64(tokenID))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return check, fmt.Errorf("load notice for token %d: %w", tokenID, err)
		}
		notice = nil
	}

	owner, err := s.chain.OwnerOf(ctx, tokenID)
	minted := err == nil
	if err != nil && !errors.Is(err, tron.ErrTokenNotFound) {
		check.outcome = models.TokenOutcome(models.DiscrepancyChainUnavailable)
		check.discrepancy = s.finding(tokenID, models.DiscrepancyChainUnavailable, notice, "", "", err.Error())
		return s.persist(ctx, check)
	}

	var uri string
	if minted {
		if uri, err = s.chain.TokenURI(ctx, tokenID); err != nil {
			s.logger.Warn("tokenURI lookup failed", zap.Uint64("token_id", tokenID), zap.Error(err))
			uri = ""
		}
	}

	switch {
	case !minted && notice == nil:
		check.outcome = models.TokenOutcomeUnminted
		return check, nil
	case !minted:
		check.outcome = models.TokenOutcome(models.DiscrepancyNotOnChain)
		check.discrepancy = s.finding(tokenID, models.DiscrepancyNotOnChain, notice, "", "", "record exists but token is not minted")
	case notice == nil:
		check.outcome = models.TokenOutcome(models.DiscrepancyMissingInDB)
		detail := "token minted without a stored notice"
		if apply {
			inserted, err := s.reconstruct(ctx, tokenID, owner, uri)
			if err != nil {
				return check, err
			}
			if inserted {
				check.inserted = true
				detail = "token minted without a stored notice; reconstructed record inserted"
			}
		}
		check.discrepancy = s.finding(tokenID, models.DiscrepancyMissingInDB, nil, owner, uri, detail)
	case notice.AlertTokenID != nil && uint64(*notice.AlertTokenID) == tokenID && !tron.AddressesEqual(owner, notice.RecipientAddress):
		check.outcome = models.TokenOutcome(models.DiscrepancyOwnerMismatch)
		check.discrepancy = s.finding(tokenID, models.DiscrepancyOwnerMismatch, notice, owner, uri, "alert token owner differs from stored recipient")
	}
	return s.persist(ctx, check)
}

func (s *ReconcileService) persist(ctx context.Context, check tokenCheck) (tokenCheck, error) {
	if check.discrepancy == nil {
		return check, nil
	}
	if err := s.store.Upsert(ctx, check.discrepancy); err != nil {
		return check, fmt.Errorf("store discrepancy for token %d: %w", check.tokenID, err)
	}
	s.logger.Warn("reconciliation discrepancy",
		zap.Uint64("token_id", check.tokenID),
		zap.String("kind", string(check.discrepancy.Kind)),
		zap.String("detail", check.discrepancy.Detail),
	)
	return check, nil
}

func (s *ReconcileService) finding(tokenID uint64, kind models.DiscrepancyKind, notice *models.Notice, owner, uri, detail string) *models.Discrepancy {
	d := &models.Discrepancy{
		TokenID:    int64(tokenID),
		Kind:       kind,
		ChainOwner: optionalString(owner),
		TokenURI:   optionalString(uri),
		Detail:     detail,
		Status:     models.DiscrepancyOpen,
		CreatedAt:  s.now(),
	}
	if notice != nil {
		d.NoticeID = &notice.NoticeID
		d.DBRecipient = &notice.RecipientAddress
	}
	return d
}

// reconstruct inserts a minimal record for an unrecorded alert token. Without the odd/even
// pairing rule the token's role is unknown and nothing is inserted.
func (s *ReconcileService) reconstruct(ctx context.Context, tokenID uint64, owner, uri string) (bool, error) {
	if !s.cfg.AssumeOddEvenPair || tokenID%2 == 0 {
		return false, nil
	}
	alertID := int64(tokenID)
	documentID := alertID + 1
	notice := &models.Notice{
		NoticeID:         "alert-" + strconv.FormatInt(alertID, 10),
		CaseNumber:       "UNKNOWN",
		AlertTokenID:     &alertID,
		DocumentTokenID:  &documentID,
		RecipientAddress: owner,
		ServerAddress:    s.cfg.ServerWallet,
		NoticeType:       "reconstructed",
		CreatedAt:        s.now(),
	}
	if hash := strings.TrimPrefix(uri, "ipfs://"); hash != uri && hash != "" {
		notice.IPFSHash = &hash
	}
	inserted, err := s.notices.InsertIfAbsent(ctx, notice)
	if err != nil {
		return false, fmt.Errorf("insert reconstructed notice for token %d: %w", tokenID, err)
	}
	return inserted, nil
}

// VerifyJob is the queue handler for post-create verification. Chain outages fail the job so
// the queue retries it.
func (s *ReconcileService) VerifyJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(VerifyNoticePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	for _, tokenID := range payload.TokenIDs {
		check, err := s.checkToken(ctx, tokenID, false)
		if err != nil {
			return err
		}
		s.metrics.ReconcileOutcome(check.outcome)
		if check.outcome == models.TokenOutcome(models.DiscrepancyChainUnavailable) {
			return fmt.Errorf("verify notice %s token %d: %w", payload.NoticeID, tokenID, tron.ErrUnavailable)
		}
	}
	return nil
}

// Discrepancies lists stored findings.
func (s *ReconcileService) Discrepancies(ctx context.Context, status string, limit int) ([]models.Discrepancy, error) {
	st := models.DiscrepancyStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && st != models.DiscrepancyOpen && st != models.DiscrepancyResolved {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be open or resolved")
	}
	items, err := s.store.List(ctx, st, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discrepancies")
	}
	return items, nil
}

// Resolve marks a finding as reviewed.
func (s *ReconcileService) Resolve(ctx context.Context, id string) error {
	if err := s.store.Resolve(ctx, id, s.now()); err != nil {
		return notFoundOr(err, "open discrepancy not found", "failed to resolve discrepancy")
	}
	return nil
}

// Start runs ReconcileRecent on the configured interval until ctx is done.
func (s *ReconcileService) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ReconcileRecent(ctx); err != nil {
					s.logger.Warn("scheduled reconciliation failed", zap.Error(err))
				}
			}
		}
	}()
}
