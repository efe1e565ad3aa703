package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/middleware"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
)

type stubNoticeService struct {
	notice      *models.Notice
	err         error
	created     models.CreateNoticeInput
	dismissedBy string
	restoredBy  string
	recentFor   string
}

func (s *stubNoticeService) Create(_ context.Context, req models.CreateNoticeInput) (*models.Notice, error) {
	s.created = req
	return s.notice, s.err
}

func (s *stubNoticeService) Get(context.Context, string) (*models.Notice, error) {
	return s.notice, s.err
}

func (s *stubNoticeService) Images(context.Context, string) (*models.NoticeImages, error) {
	return &models.NoticeImages{CaseNumber: "CASE-1"}, s.err
}

func (s *stubNoticeService) Transaction(context.Context, string) (*models.TransactionProof, error) {
	return &models.TransactionProof{Source: models.TransactionSourceDatabase}, s.err
}

func (s *stubNoticeService) Receipt(_ context.Context, _ string, server string) ([]byte, error) {
	if server != testServer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the serving wallet may download the receipt")
	}
	return []byte("%PDF-1.3 receipt"), nil
}

func (s *stubNoticeService) Dismiss(_ context.Context, _ string, server string) error {
	s.dismissedBy = server
	return s.err
}

func (s *stubNoticeService) Restore(_ context.Context, _ string, server string) error {
	s.restoredBy = server
	return s.err
}

func (s *stubNoticeService) ListRecent(_ context.Context, server string) (*models.RecentNotices, error) {
	s.recentFor = server
	return &models.RecentNotices{Notices: []models.Notice{}, TotalActive: 0}, s.err
}

func (s *stubNoticeService) ListAll(context.Context, string) (*models.ServedNotices, error) {
	return &models.ServedNotices{}, s.err
}

func (s *stubNoticeService) ExportServed(context.Context, string) ([]byte, error) {
	return []byte("notice_id,case_number\nalert-1,CASE-1\n"), s.err
}

type stubBlobStorer struct {
	stored []models.StoreBlobInput
}

func (s *stubBlobStorer) Store(_ context.Context, in models.StoreBlobInput) (*models.StorageRef, error) {
	s.stored = append(s.stored, in)
	return &models.StorageRef{ID: "blob-" + string(in.Kind), Kind: in.Kind, Size: int64(len(in.Data))}, nil
}

func (s *stubBlobStorer) MaxUploadBytes() int64 { return 1024 }

type stubAttemptLister struct {
	limit int
}

func (s *stubAttemptLister) Attempts(_ context.Context, _ string, _ string, limit int) ([]models.AccessAttempt, error) {
	s.limit = limit
	return []models.AccessAttempt{{NoticeID: "alert-1", Granted: false}}, nil
}

func noticeRouter(h *NoticeHandler) *gin.Engine {
	r := gin.New()
	g := r.Group("/api", middleware.ServerAddress())
	g.POST("/notices", h.Create)
	g.GET("/notices/recent", h.Recent)
	g.GET("/notices/all-served/export", h.Export)
	g.POST("/notices/dismiss", h.Dismiss)
	g.POST("/notices/restore", h.Restore)
	g.GET("/notices/:noticeId", h.Get)
	g.POST("/notices/:noticeId/images", h.UploadImages)
	g.GET("/notices/:noticeId/receipt", h.Receipt)
	g.GET("/notices/:noticeId/access-attempts", h.AccessAttempts)
	return r
}

func TestNoticeHandlerCreate(t *testing.T) {
	svc := &stubNoticeService{notice: &models.Notice{NoticeID: "alert-1", CaseNumber: "CASE-1"}}
	r := noticeRouter(NewNoticeHandler(svc, &stubBlobStorer{}, &stubAttemptLister{}))

	rec := perform(r, http.MethodPost, "/api/notices", jsonBody(t, map[string]interface{}{
		"caseNumber":       "CASE-1",
		"recipientAddress": testRecipient,
		"serverAddress":    testServer,
	}), map[string]string{"Content-Type": "application/json"})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "alert-1", body["notice"].(map[string]interface{})["noticeId"])
	assert.Equal(t, "CASE-1", svc.created.CaseNumber)
}

func TestNoticeHandlerCreateRejectsMalformedJSON(t *testing.T) {
	r := noticeRouter(NewNoticeHandler(&stubNoticeService{}, &stubBlobStorer{}, &stubAttemptLister{}))

	rec := perform(r, http.MethodPost, "/api/notices", strings.NewReader("{"), map[string]string{"Content-Type": "application/json"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, rec))
}

func TestNoticeHandlerGetNotFound(t *testing.T) {
	svc := &stubNoticeService{err: appErrors.Clone(appErrors.ErrNotFound, "notice not found")}
	r := noticeRouter(NewNoticeHandler(svc, &stubBlobStorer{}, &stubAttemptLister{}))

	rec := perform(r, http.MethodGet, "/api/notices/missing", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, rec))
}

func TestNoticeHandlerServerAddressHeaderWinsOverBody(t *testing.T) {
	svc := &stubNoticeService{}
	r := noticeRouter(NewNoticeHandler(svc, &stubBlobStorer{}, &stubAttemptLister{}))

	rec := perform(r, http.MethodPost, "/api/notices/dismiss",
		jsonBody(t, map[string]string{"noticeId": "alert-1", "serverAddress": "TBodyAddress"}),
		map[string]string{"Content-Type": "application/json", middleware.HeaderServerAddress: testServer})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testServer, svc.dismissedBy)

	rec = perform(r, http.MethodPost, "/api/notices/restore",
		jsonBody(t, map[string]string{"noticeId": "alert-1", "serverAddress": testServer}),
		map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testServer, svc.restoredBy)
	assert.Equal(t, "Notice restored", decode(t, rec)["message"])
}

func TestNoticeHandlerRecentUsesQueryAddress(t *testing.T) {
	svc := &stubNoticeService{}
	r := noticeRouter(NewNoticeHandler(svc, &stubBlobStorer{}, &stubAttemptLister{}))

	rec := perform(r, http.MethodGet, "/api/notices/recent?serverAddress="+testServer, nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testServer, svc.recentFor)
	assert.Equal(t, float64(0), decode(t, rec)["totalActive"])
}

func TestNoticeHandlerReceiptAndExport(t *testing.T) {
	r := noticeRouter(NewNoticeHandler(&stubNoticeService{}, &stubBlobStorer{}, &stubAttemptLister{}))

	rec := perform(r, http.MethodGet, "/api/notices/alert-1/receipt", nil, map[string]string{middleware.HeaderServerAddress: testServer})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "receipt-alert-1.pdf")

	rec = perform(r, http.MethodGet, "/api/notices/alert-1/receipt", nil, map[string]string{middleware.HeaderServerAddress: testRecipient})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = perform(r, http.MethodGet, "/api/notices/all-served/export", nil, map[string]string{middleware.HeaderServerAddress: testServer})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "notice_id,case_number"))
}

func TestNoticeHandlerUploadImages(t *testing.T) {
	svc := &stubNoticeService{notice: &models.Notice{NoticeID: "alert-1"}}
	uploads := &stubBlobStorer{}
	r := noticeRouter(NewNoticeHandler(svc, uploads, &stubAttemptLister{}))

	body, contentType := multipartBody(t, nil,
		formFile{field: "thumbnail", name: "thumb.png", data: []byte("png-bytes")},
		formFile{field: "document", name: "doc.pdf", data: []byte("%PDF-1.4")},
	)
	rec := perform(r, http.MethodPost, "/api/notices/alert-1/images", body, map[string]string{"Content-Type": contentType})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, uploads.stored, 2)
	assert.Equal(t, models.BlobKindAlertThumbnail, uploads.stored[0].Kind)
	assert.Equal(t, "alert-1", uploads.stored[0].NoticeID)
	assert.Equal(t, models.BlobKindDocumentFull, uploads.stored[1].Kind)
	out := decode(t, rec)
	assert.Contains(t, out, "thumbnail")
	assert.Contains(t, out, "document")
}

func TestNoticeHandlerUploadImagesRequiresAFile(t *testing.T) {
	svc := &stubNoticeService{notice: &models.Notice{NoticeID: "alert-1"}}
	r := noticeRouter(NewNoticeHandler(svc, &stubBlobStorer{}, &stubAttemptLister{}))

	body, contentType := multipartBody(t, map[string]string{"note": "nothing"})
	rec := perform(r, http.MethodPost, "/api/notices/alert-1/images", body, map[string]string{"Content-Type": contentType})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType = multipartBody(t, nil, formFile{field: "document", name: "big.pdf", data: make([]byte, 2048)})
	rec = perform(r, http.MethodPost, "/api/notices/alert-1/images", body, map[string]string{"Content-Type": contentType})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNoticeHandlerAccessAttemptsClampsLimit(t *testing.T) {
	attempts := &stubAttemptLister{}
	r := noticeRouter(NewNoticeHandler(&stubNoticeService{}, &stubBlobStorer{}, attempts))

	rec := perform(r, http.MethodGet, "/api/notices/alert-1/access-attempts?limit=9999", nil, map[string]string{middleware.HeaderServerAddress: testServer})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, attempts.limit)
	assert.Equal(t, float64(1), decode(t, rec)["total"])
}
