package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
)

var handlerPDF = []byte("%PDF-1.4\n%%EOF\n")

type stubDocumentStore struct {
	last  models.StoreBlobInput
	blobs map[string][]byte
}

func newStubDocumentStore() *stubDocumentStore {
	return &stubDocumentStore{blobs: map[string][]byte{"blob-1": handlerPDF}}
}

func (s *stubDocumentStore) Store(_ context.Context, in models.StoreBlobInput) (*models.StorageRef, error) {
	s.last = in
	if in.RequireMime == "application/pdf" && !bytes.HasPrefix(in.Data, []byte("%PDF")) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file must be application/pdf")
	}
	return &models.StorageRef{ID: "blob-2", FileName: "doc.pdf", Location: "primary", Size: int64(len(in.Data))}, nil
}

func (s *stubDocumentStore) Open(_ context.Context, id string) (*models.NoticeBlob, io.ReadCloser, error) {
	data, ok := s.blobs[id]
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return &models.NoticeBlob{ID: id, FileName: "doc.pdf", MimeType: "application/pdf", SizeBytes: int64(len(data))}, io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubDocumentStore) OpenByFileName(_ context.Context, fileName, token string) (*models.NoticeBlob, io.ReadCloser, error) {
	if token != "good" {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid document token")
	}
	return &models.NoticeBlob{FileName: fileName, MimeType: "application/pdf", SizeBytes: int64(len(handlerPDF))}, io.NopCloser(bytes.NewReader(handlerPDF)), nil
}

func (s *stubDocumentStore) ServeURL(fileName string) (string, error) {
	return "/api/v2/documents/serve/" + fileName + "?token=good", nil
}

func (s *stubDocumentStore) RetrieveURL(id string) string { return "/api/pdf-simple/retrieve/" + id }

func (s *stubDocumentStore) MaxUploadBytes() int64 { return 1 << 20 }

func documentRouter(h *DocumentHandler) *gin.Engine {
	r := gin.New()
	r.POST("/v2/documents/upload-to-disk", h.UploadToDisk)
	r.GET("/v2/documents/serve/:filename", h.Serve)
	r.POST("/pdf-simple/upload", h.SimpleUpload)
	r.GET("/pdf-simple/retrieve/:fileId", h.SimpleRetrieve)
	r.GET("/documents/:blobId", h.Get)
	return r
}

func TestDocumentHandlerUploadToDisk(t *testing.T) {
	store := newStubDocumentStore()
	r := documentRouter(NewDocumentHandler(store))

	body, contentType := multipartBody(t, map[string]string{"noticeId": "alert-1"}, formFile{field: "pdf", name: "doc.pdf", data: handlerPDF})
	rec := perform(r, http.MethodPost, "/v2/documents/upload-to-disk", body, map[string]string{"Content-Type": contentType})

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "/api/v2/documents/serve/doc.pdf?token=good", out["url"])
	assert.Equal(t, "alert-1", store.last.NoticeID)
	assert.Equal(t, "application/pdf", store.last.RequireMime)

	body, contentType = multipartBody(t, nil, formFile{field: "pdf", name: "x.pdf", data: []byte("not a pdf")})
	rec = perform(r, http.MethodPost, "/v2/documents/upload-to-disk", body, map[string]string{"Content-Type": contentType})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType = multipartBody(t, map[string]string{"noticeId": "alert-1"})
	rec = perform(r, http.MethodPost, "/v2/documents/upload-to-disk", body, map[string]string{"Content-Type": contentType})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentHandlerServeRequiresToken(t *testing.T) {
	r := documentRouter(NewDocumentHandler(newStubDocumentStore()))

	rec := perform(r, http.MethodGet, "/v2/documents/serve/doc.pdf?token=good", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, handlerPDF, rec.Body.Bytes())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = perform(r, http.MethodGet, "/v2/documents/serve/doc.pdf?token=bad", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDocumentHandlerSimpleRoundTrip(t *testing.T) {
	r := documentRouter(NewDocumentHandler(newStubDocumentStore()))

	body, contentType := multipartBody(t, nil, formFile{field: "document", name: "doc.pdf", data: handlerPDF})
	rec := perform(r, http.MethodPost, "/pdf-simple/upload", body, map[string]string{"Content-Type": contentType})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "blob-2", out["fileId"])
	assert.Equal(t, "/api/pdf-simple/retrieve/blob-2", out["retrieveUrl"])

	rec = perform(r, http.MethodGet, "/pdf-simple/retrieve/blob-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	rec = perform(r, http.MethodGet, "/documents/blob-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")

	rec = perform(r, http.MethodGet, "/documents/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
