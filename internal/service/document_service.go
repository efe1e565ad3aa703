package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/storage"
)

const orphanBatchSize = 200

type blobRepository interface {
	Create(ctx context.Context, blob *models.NoticeBlob) error
	GetByID(ctx context.Context, id string) (*models.NoticeBlob, error)
	GetByFileName(ctx context.Context, fileName string) (*models.NoticeBlob, error)
	Attach(ctx context.Context, ids []string, noticeID string) (int64, error)
	ListOrphans(ctx context.Context, olderThan time.Time, limit int) ([]models.NoticeBlob, error)
	Delete(ctx context.Context, id string) error
}

type documentFiles interface {
	Save(name string, data []byte) (storage.Location, string, error)
	Open(name string, preferred storage.Location) (*os.File, storage.Location, error)
	Read(name string, preferred storage.Location) ([]byte, error)
	Delete(name string) error
}

// DocumentServiceConfig controls the storage policy.
type DocumentServiceConfig struct {
	APIPrefix          string
	InlineThumbnailMax int64
	MaxUploadBytes     int64
	OrphanTTL          time.Duration
	SweepInterval      time.Duration
}

// DocumentService stores thumbnails inline and documents on disk, and removes uploads that never
// got attached to a notice.
type DocumentService struct {
	repo    blobRepository
	files   documentFiles
	signer  *storage.SignedURLSigner
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DocumentServiceConfig
}

// NewDocumentService constructs a DocumentService. A nil signer serves documents without tokens.
func NewDocumentService(repo blobRepository, files documentFiles, signer *storage.SignedURLSigner, metrics *MetricsService, cfg DocumentServiceConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InlineThumbnailMax <= 0 {
		cfg.InlineThumbnailMax = 512 * 1024
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 * 1024 * 1024
	}
	if cfg.OrphanTTL <= 0 {
		cfg.OrphanTTL = 24 * time.Hour
	}
	cfg.APIPrefix = strings.TrimSuffix(cfg.APIPrefix, "/")
	return &DocumentService{
		repo:    repo,
		files:   files,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		cfg:     cfg,
	}
}

// MaxUploadBytes is the largest accepted upload.
func (s *DocumentService) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

// Store persists an upload. Small thumbnails live in the database row; everything else goes to
// disk, primary mount first.
func (s *DocumentService) Store(ctx context.Context, in models.StoreBlobInput) (*models.StorageRef, error) {
	if in.Kind != models.BlobKindAlertThumbnail && in.Kind != models.BlobKindDocumentFull {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be alert_thumbnail or document_full")
	}
	size := int64(len(in.Data))
	if size == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if size > s.cfg.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	mtype := mimetype.Detect(in.Data)
	if in.RequireMime != "" && !mtype.Is(in.RequireMime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file must be %s, got %s", in.RequireMime, mtype.String()))
	}

	sum := sha256.Sum256(in.Data)
	blob := &models.NoticeBlob{
		NoticeID:  optionalString(in.NoticeID),
		Kind:      in.Kind,
		FileName:  strings.ToLower(ulid.Make().String()) + mtype.Extension(),
		MimeType:  mtype.String(),
		SizeBytes: size,
		SHA256:    hex.EncodeToString(sum[:]),
	}

	var location storage.Location
	if in.Kind == models.BlobKindAlertThumbnail && size <= s.cfg.InlineThumbnailMax {
		blob.Backend = models.BlobBackendInline
		blob.InlineData = in.Data
	} else {
		loc, path, err := s.files.Save(blob.FileName, in.Data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to write document")
		}
		location = loc
		locStr := string(loc)
		blob.Backend = models.BlobBackendDisk
		blob.Location = &locStr
		blob.FilePath = &path
	}

	if err := s.repo.Create(ctx, blob); err != nil {
		if blob.Backend == models.BlobBackendDisk {
			if derr := s.files.Delete(blob.FileName); derr != nil {
				s.logger.Warn("failed to remove file after metadata insert failed", zap.String("file_name", blob.FileName), zap.Error(derr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to record document")
	}

	s.metrics.StorageWrite(blob.Backend, location)
	s.logger.Info("stored notice blob",
		zap.String("blob_id", blob.ID),
		zap.String("kind", string(blob.Kind)),
		zap.String("backend", string(blob.Backend)),
		zap.String("location", string(location)),
		zap.Int64("size", size),
	)
	ref := blob.Ref()
	return &ref, nil
}

// Retrieve returns the stored bytes of a blob.
func (s *DocumentService) Retrieve(ctx context.Context, id string) (*models.NoticeBlob, []byte, error) {
	blob, err := s.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if blob.Backend == models.BlobBackendInline {
		return blob, blob.InlineData, nil
	}
	data, err := s.files.Read(blob.FileName, blobLocation(blob))
	if err != nil {
		return nil, nil, s.fileError(err)
	}
	return blob, data, nil
}

// Open returns a reader over a blob's bytes. Callers close it.
func (s *DocumentService) Open(ctx context.Context, id string) (*models.NoticeBlob, io.ReadCloser, error) {
	blob, err := s.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.open(blob)
}

// OpenByFileName serves a disk document by its stored name. When URL signing is on, token must be valid.
func (s *DocumentService) OpenByFileName(ctx context.Context, fileName, token string) (*models.NoticeBlob, io.ReadCloser, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || strings.ContainsAny(fileName, `/\`) || strings.Contains(fileName, "..") {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid file name")
	}
	if s.signer != nil {
		if err := s.signer.Verify(token, fileName); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired document link")
		}
	}
	blob, err := s.repo.GetByFileName(ctx, fileName)
	if err != nil {
		return nil, nil, notFoundOr(err, "document not found", "failed to load document")
	}
	return s.open(blob)
}

func (s *DocumentService) open(blob *models.NoticeBlob) (*models.NoticeBlob, io.ReadCloser, error) {
	if blob.Backend == models.BlobBackendInline {
		return blob, io.NopCloser(bytes.NewReader(blob.InlineData)), nil
	}
	file, _, err := s.files.Open(blob.FileName, blobLocation(blob))
	if err != nil {
		return nil, nil, s.fileError(err)
	}
	return blob, file, nil
}

func (s *DocumentService) lookup(ctx context.Context, id string) (*models.NoticeBlob, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	blob, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "document not found", "failed to load document")
	}
	return blob, nil
}

func (s *DocumentService) fileError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "document file missing")
	}
	return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read document")
}

func blobLocation(blob *models.NoticeBlob) storage.Location {
	if blob.Location == nil {
		return storage.LocationPrimary
	}
	return storage.Location(*blob.Location)
}

// AttachToNotice links uploaded blobs to a notice once it is recorded.
func (s *DocumentService) AttachToNotice(ctx context.Context, ids []string, noticeID string) (int64, error) {
	if strings.TrimSpace(noticeID) == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "noticeId is required")
	}
	n, err := s.repo.Attach(ctx, ids, noticeID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to attach documents")
	}
	return n, nil
}

// BlobURL builds the public link of a blob. Disk documents use the streaming route.
func (s *DocumentService) BlobURL(blob *models.NoticeBlob) (string, error) {
	if blob.Backend != models.BlobBackendDisk || blob.Kind != models.BlobKindDocumentFull {
		return s.cfg.APIPrefix + "/documents/" + url.PathEscape(blob.ID), nil
	}
	return s.ServeURL(blob.FileName)
}

// ServeURL returns the streaming link of a disk document, signed when signing is on.
func (s *DocumentService) ServeURL(fileName string) (string, error) {
	link := s.cfg.APIPrefix + "/v2/documents/serve/" + url.PathEscape(fileName)
	if s.signer == nil {
		return link, nil
	}
	token, _, err := s.signer.Generate(fileName)
	if err != nil {
		return "", fmt.Errorf("sign document url: %w", err)
	}
	return link + "?token=" + url.QueryEscape(token), nil
}

// RetrieveURL is the id-addressed link used by the simple PDF routes.
func (s *DocumentService) RetrieveURL(id string) string {
	return s.cfg.APIPrefix + "/pdf-simple/retrieve/" + url.PathEscape(id)
}

// SweepOrphans removes uploads older than the orphan TTL that belong to no notice. Running it
// twice is harmless.
func (s *DocumentService) SweepOrphans(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.OrphanTTL)
	removed := 0
	for {
		orphans, err := s.repo.ListOrphans(ctx, cutoff, orphanBatchSize)
		if err != nil {
			return removed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orphaned uploads")
		}
		progressed := 0
		for _, blob := range orphans {
			if blob.Backend == models.BlobBackendDisk {
				if err := s.files.Delete(blob.FileName); err != nil {
					s.logger.Warn("failed to delete orphaned file", zap.String("blob_id", blob.ID), zap.String("file_name", blob.FileName), zap.Error(err))
					continue
				}
			}
			if err := s.repo.Delete(ctx, blob.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("failed to delete orphaned blob row", zap.String("blob_id", blob.ID), zap.Error(err))
				continue
			}
			progressed++
		}
		removed += progressed
		if len(orphans) < orphanBatchSize || progressed == 0 {
			break
		}
	}
	if removed > 0 {
		s.metrics.OrphansSwept(removed)
		s.logger.Info("swept orphaned uploads", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

// StartOrphanSweep runs SweepOrphans on the configured interval until ctx is done.
func (s *DocumentService) StartOrphanSweep(ctx context.Context) {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOrphans(ctx); err != nil {
					s.logger.Warn("orphan sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// latestBlobURL links the newest blob of kind for a notice. Lookup failures are logged and
// reported as no link.
func latestBlobURL(ctx context.Context, blobs blobFinder, links blobLinker, logger *zap.Logger, noticeID string, kind models.BlobKind) *string {
	if links == nil {
		return nil
	}
	blob, err := blobs.LatestForNotice(ctx, noticeID, kind)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("failed to look up notice blob", zap.String("notice_id", noticeID), zap.String("kind", string(kind)), zap.Error(err))
		}
		return nil
	}
	link, err := links.BlobURL(blob)
	if err != nil {
		logger.Warn("failed to build blob url", zap.String("blob_id", blob.ID), zap.Error(err))
		return nil
	}
	return &link
}
