package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/response"
)

type documentStore interface {
	Store(ctx context.Context, in models.StoreBlobInput) (*models.StorageRef, error)
	Open(ctx context.Context, id string) (*models.NoticeBlob, io.ReadCloser, error)
	OpenByFileName(ctx context.Context, fileName, token string) (*models.NoticeBlob, io.ReadCloser, error)
	ServeURL(fileName string) (string, error)
	RetrieveURL(id string) string
	MaxUploadBytes() int64
}

// DocumentHandler serves document uploads and downloads.
type DocumentHandler struct {
	docs documentStore
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(docs documentStore) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// UploadToDisk godoc
// @Summary Store a PDF on disk
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF document"
// @Param noticeId formData string false "Notice to attach to"
// @Router /v2/documents/upload-to-disk [post]
func (h *DocumentHandler) UploadToDisk(c *gin.Context) {
	ref, ok := h.store(c, "pdf", "application/pdf")
	if !ok {
		return
	}
	link, err := h.docs.ServeURL(ref.FileName)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build document url"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"success":  true,
		"id":       ref.ID,
		"path":     ref.Location + "/" + ref.FileName,
		"url":      link,
		"fileName": ref.FileName,
		"size":     ref.Size,
	})
}

// Serve godoc
// @Summary Stream a disk document
// @Tags Documents
// @Produce application/pdf
// @Param filename path string true "Stored file name"
// @Param token query string false "Signed access token"
// @Router /v2/documents/serve/{filename} [get]
func (h *DocumentHandler) Serve(c *gin.Context) {
	blob, rc, err := h.docs.OpenByFileName(c.Request.Context(), c.Param("filename"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	stream(c, blob, rc, "inline")
}

// SimpleUpload godoc
// @Summary Store a document and return its retrieval link
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param document formData file true "Document"
// @Router /pdf-simple/upload [post]
func (h *DocumentHandler) SimpleUpload(c *gin.Context) {
	ref, ok := h.store(c, "document", "")
	if !ok {
		return
	}
	retrieve := h.docs.RetrieveURL(ref.ID)
	direct, err := h.docs.ServeURL(ref.FileName)
	if err != nil {
		direct = retrieve
	}
	response.JSON(c, http.StatusOK, gin.H{
		"success":     true,
		"fileId":      ref.ID,
		"retrieveUrl": retrieve,
		"directUrl":   direct,
	})
}

// SimpleRetrieve godoc
// @Summary Download a document by id
// @Tags Documents
// @Param fileId path string true "Blob id"
// @Router /pdf-simple/retrieve/{fileId} [get]
func (h *DocumentHandler) SimpleRetrieve(c *gin.Context) {
	h.byID(c, c.Param("fileId"), "attachment")
}

// Get godoc
// @Summary Stored thumbnail or document by id
// @Tags Documents
// @Param blobId path string true "Blob id"
// @Router /documents/{blobId} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	h.byID(c, c.Param("blobId"), "inline")
}

func (h *DocumentHandler) byID(c *gin.Context, id, disposition string) {
	blob, rc, err := h.docs.Open(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	stream(c, blob, rc, disposition)
}

func (h *DocumentHandler) store(c *gin.Context, field, requireMime string) (*models.StorageRef, bool) {
	data, header, ok, err := readUpload(c, field, h.docs.MaxUploadBytes())
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, field+" file is required"))
		return nil, false
	}
	ref, err := h.docs.Store(c.Request.Context(), models.StoreBlobInput{
		NoticeID:    c.PostForm("noticeId"),
		Kind:        models.BlobKindDocumentFull,
		FileName:    header.Filename,
		Data:        data,
		RequireMime: requireMime,
	})
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return ref, true
}

func stream(c *gin.Context, blob *models.NoticeBlob, rc io.ReadCloser, disposition string) {
	defer rc.Close() //nolint:errcheck
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf(`%s; filename="%s"`, disposition, blob.FileName),
		"Cache-Control":       "private, max-age=300",
	}
	c.DataFromReader(http.StatusOK, blob.SizeBytes, blob.MimeType, rc, headers)
}
