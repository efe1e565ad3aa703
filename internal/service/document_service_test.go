package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/storage"
)

var (
	samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	samplePNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}
)

type documentFixture struct {
	svc      *DocumentService
	repo     *memBlobRepo
	files    *storage.FallbackStorage
	primary  string
	fallback string
}

func newDocumentFixture(t *testing.T, primary string, signer *storage.SignedURLSigner) *documentFixture {
	t.Helper()
	fallback := t.TempDir()
	files, err := storage.NewFallbackStorage(primary, fallback, nil)
	require.NoError(t, err)
	repo := newMemBlobRepo()
	svc := NewDocumentService(repo, files, signer, NewMetricsService(), DocumentServiceConfig{
		APIPrefix:          "/api",
		InlineThumbnailMax: 1024,
		MaxUploadBytes:     1 << 20,
		OrphanTTL:          24 * time.Hour,
	}, nil)
	return &documentFixture{svc: svc, repo: repo, files: files, primary: primary, fallback: fallback}
}

func TestDocumentServiceStoreRoundTrip(t *testing.T) {
	f := newDocumentFixture(t, t.TempDir(), nil)
	ctx := context.Background()

	ref, err := f.svc.Store(ctx, models.StoreBlobInput{Kind: models.BlobKindDocumentFull, Data: samplePDF, RequireMime: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, models.BlobBackendDisk, ref.Backend)
	assert.Equal(t, string(storage.LocationPrimary), ref.Location)
	assert.True(t, strings.HasSuffix(ref.FileName, ".pdf"))
	assert.Equal(t, int64(len(samplePDF)), ref.Size)

	_, err = os.Stat(filepath.Join(f.primary, ref.FileName))
	require.NoError(t, err)

	_, data, err := f.svc.Retrieve(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)

	_, rc, err := f.svc.Open(ctx, ref.ID)
	require.NoError(t, err)
	streamed, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, samplePDF, streamed)
}

func TestDocumentServiceFallsBackWhenPrimaryUnusable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	f := newDocumentFixture(t, filepath.Join(blocker, "docs"), nil)
	ctx := context.Background()

	ref, err := f.svc.Store(ctx, models.StoreBlobInput{Kind: models.BlobKindDocumentFull, Data: samplePDF})
	require.NoError(t, err)
	assert.Equal(t, string(storage.LocationFallback), ref.Location)

	_, data, err := f.svc.Retrieve(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)
}

func TestDocumentServiceInlineThumbnail(t *testing.T) {
	f := newDocumentFixture(t, t.TempDir(), nil)
	ctx := context.Background()

	ref, err := f.svc.Store(ctx, models.StoreBlobInput{NoticeID: "alert-1", Kind: models.BlobKindAlertThumbnail, Data: samplePNG})
	require.NoError(t, err)
	assert.Equal(t, models.BlobBackendInline, ref.Backend)
	assert.Equal(t, "image/png", ref.MimeType)

	entries, err := os.ReadDir(f.primary)
	require.NoError(t, err)
	assert.Empty(t, entries)

	blob, data, err := f.svc.Retrieve(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, samplePNG, data)

	link, err := f.svc.BlobURL(blob)
	require.NoError(t, err)
	assert.Equal(t, "/api/documents/"+ref.ID, link)
}

func TestDocumentServiceStoreRejects(t *testing.T) {
	f := newDocumentFixture(t, t.TempDir(), nil)
	ctx := context.Background()
	var appErr *appErrors.Error

	_, err := f.svc.Store(ctx, models.StoreBlobInput{Kind: models.BlobKindDocumentFull})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "file is empty", appErr.Message)

	_, err = f.svc.Store(ctx, models.StoreBlobInput{Kind: models.BlobKindDocumentFull, Data: samplePNG, RequireMime: "application/pdf"})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = f.svc.Store(ctx, models.StoreBlobInput{Kind: "other", Data: samplePDF})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = f.svc.Store(ctx, models.StoreBlobInput{Kind: models.BlobKindDocumentFull, Data: make([]byte, (1<<20)+1)})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDocumentServiceRemovesFileWhenMetadataFails(t *testing.T) {
	f := newDocumentFixture(t, t.TempDir(), nil)
	f.repo.createErr = errors.New("insert failed")

	_, err := f.svc.Store(context.Background(), models.StoreBlobInput{Kind: models.BlobKindDocumentFull, Data: samplePDF})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrStorage.Code, appErr.Code)

	entries, err := os.ReadDir(f.primary)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDocumentServiceRetrieveMissing(t *testing.T) {
	f := newDocumentFixture(t, t.TempDir(), nil)
	var appErr *appErrors.Error

	_, _, err := f.svc.Retrieve(context.Background(), "not-a-uuid")
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	_, _, err = f.svc.Retrieve(context.Background(), "7d1f2a3b-4c5d-4e6f-8a9b-0c1d2e3f4a5b")
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDocumentServiceSignedServeURL(t *testing.T) {
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	f := newDocumentFixture(t, t.TempDir(), signer)
	ctx := context.Background()

	ref, err := f.svc.Store(ctx, models.StoreBlobInput{NoticeID: "alert-1", Kind: models.BlobKindDocumentFull, Data: samplePDF})
	require.NoError(t, err)
	blob, err := f.repo.GetByID(ctx, ref.ID)
	require.NoError(t, err)

	link, err := f.svc.BlobURL(blob)
	require.NoError(t, err)
	prefix := "/api/v2/documents/serve/" + ref.FileName + "?token="
	require.True(t, strings.HasPrefix(link, prefix))
	token := strings.TrimPrefix(link, prefix)

	_, rc, err := f.svc.OpenByFileName(ctx, ref.FileName, token)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, _, err = f.svc.OpenByFileName(ctx, ref.FileName, "bogus")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	_, _, err = f.svc.OpenByFileName(ctx, "../etc/passwd", token)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDocumentServiceSweepOrphans(t *testing.T) {
	f := newDocumentFixture(t, t.TempDir(), nil)
	ctx := context.Background()

	orphan, err := f.svc.Store(ctx, models.StoreBlobInput{Kind: models.BlobKindDocumentFull, Data: samplePDF})
	require.NoError(t, err)
	attached, err := f.svc.Store(ctx, models.StoreBlobInput{Kind: models.BlobKindDocumentFull, Data: samplePDF})
	require.NoError(t, err)
	n, err := f.svc.AttachToNotice(ctx, []string{attached.ID}, "alert-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	removed, err := f.svc.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	removed, err = f.svc.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(f.primary, orphan.FileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(f.primary, attached.FileName))
	assert.NoError(t, err)

	removed, err = f.svc.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
