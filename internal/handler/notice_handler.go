package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/response"
)

type noticeService interface {
	Create(ctx context.Context, req models.CreateNoticeInput) (*models.Notice, error)
	Get(ctx context.Context, noticeID string) (*models.Notice, error)
	Images(ctx context.Context, noticeID string) (*models.NoticeImages, error)
	Transaction(ctx context.Context, noticeID string) (*models.TransactionProof, error)
	Receipt(ctx context.Context, noticeID, serverAddress string) ([]byte, error)
	Dismiss(ctx context.Context, noticeID, serverAddress string) error
	Restore(ctx context.Context, noticeID, serverAddress string) error
	ListRecent(ctx context.Context, serverAddress string) (*models.RecentNotices, error)
	ListAll(ctx context.Context, serverAddress string) (*models.ServedNotices, error)
	ExportServed(ctx context.Context, serverAddress string) ([]byte, error)
}

type blobStorer interface {
	Store(ctx context.Context, in models.StoreBlobInput) (*models.StorageRef, error)
	MaxUploadBytes() int64
}

type attemptLister interface {
	Attempts(ctx context.Context, noticeID, serverAddress string, limit int) ([]models.AccessAttempt, error)
}

// NoticeHandler exposes the notice record endpoints.
type NoticeHandler struct {
	notices  noticeService
	uploads  blobStorer
	attempts attemptLister
}

// NewNoticeHandler constructs the handler.
func NewNoticeHandler(notices noticeService, uploads blobStorer, attempts attemptLister) *NoticeHandler {
	return &NoticeHandler{notices: notices, uploads: uploads, attempts: attempts}
}

type noticeActionRequest struct {
	NoticeID      string `json:"noticeId" binding:"required"`
	ServerAddress string `json:"serverAddress"`
}

// Create godoc
// @Summary Record a served notice
// @Tags Notices
// @Accept json
// @Produce json
// @Param payload body models.CreateNoticeInput true "Notice"
// @Success 201 {object} map[string]interface{}
// @Router /notices [post]
func (h *NoticeHandler) Create(c *gin.Context) {
	var req models.CreateNoticeInput
	if !bindJSON(c, &req, "invalid notice payload") {
		return
	}
	notice, err := h.notices.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"success": true, "notice": notice})
}

// Get godoc
// @Summary Get a notice
// @Tags Notices
// @Produce json
// @Param noticeId path string true "Notice ID"
// @Router /notices/{noticeId} [get]
func (h *NoticeHandler) Get(c *gin.Context) {
	notice, err := h.notices.Get(c.Request.Context(), c.Param("noticeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"notice": notice})
}

// Images godoc
// @Summary Links to a notice's thumbnail and document
// @Tags Notices
// @Produce json
// @Param noticeId path string true "Notice ID"
// @Router /notices/{noticeId}/images [get]
func (h *NoticeHandler) Images(c *gin.Context) {
	images, err := h.notices.Images(c.Request.Context(), c.Param("noticeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, images)
}

// UploadImages godoc
// @Summary Upload a thumbnail and/or document for a notice
// @Tags Notices
// @Accept multipart/form-data
// @Produce json
// @Param noticeId path string true "Notice ID"
// @Router /notices/{noticeId}/images [post]
func (h *NoticeHandler) UploadImages(c *gin.Context) {
	ctx := c.Request.Context()
	notice, err := h.notices.Get(ctx, c.Param("noticeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	max := h.uploads.MaxUploadBytes()
	result := gin.H{"success": true}
	stored := 0
	for _, part := range []struct {
		field string
		kind  models.BlobKind
		mime  string
	}{
		{"thumbnail", models.BlobKindAlertThumbnail, ""},
		{"document", models.BlobKindDocumentFull, ""},
	} {
		data, header, ok, err := readUpload(c, part.field, max)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !ok {
			continue
		}
		ref, err := h.uploads.Store(ctx, models.StoreBlobInput{
			NoticeID:    notice.NoticeID,
			Kind:        part.kind,
			FileName:    header.Filename,
			Data:        data,
			RequireMime: part.mime,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		result[part.field] = ref
		stored++
	}
	if stored == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "thumbnail or document file is required"))
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Transaction godoc
// @Summary Chain proof of a notice
// @Tags Notices
// @Produce json
// @Param noticeId path string true "Notice ID"
// @Router /notices/{noticeId}/transaction [get]
func (h *NoticeHandler) Transaction(c *gin.Context) {
	proof, err := h.notices.Transaction(c.Request.Context(), c.Param("noticeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proof)
}

// Receipt godoc
// @Summary Proof-of-service PDF
// @Tags Notices
// @Produce application/pdf
// @Param noticeId path string true "Notice ID"
// @Param X-Server-Address header string true "Serving wallet"
// @Router /notices/{noticeId}/receipt [get]
func (h *NoticeHandler) Receipt(c *gin.Context) {
	noticeID := c.Param("noticeId")
	pdf, err := h.notices.Receipt(c.Request.Context(), noticeID, serverAddress(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, safeFileName(noticeID)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// AccessAttempts godoc
// @Summary Authorization log of a notice
// @Tags Notices
// @Produce json
// @Param noticeId path string true "Notice ID"
// @Param X-Server-Address header string true "Serving wallet"
// @Router /notices/{noticeId}/access-attempts [get]
func (h *NoticeHandler) AccessAttempts(c *gin.Context) {
	attempts, err := h.attempts.Attempts(c.Request.Context(), c.Param("noticeId"), serverAddress(c, ""), parseLimit(c, 100, 500))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"attempts": attempts, "total": len(attempts)})
}

// Dismiss godoc
// @Summary Hide a notice from the recent list
// @Tags Notices
// @Accept json
// @Produce json
// @Router /notices/dismiss [post]
func (h *NoticeHandler) Dismiss(c *gin.Context) {
	var req noticeActionRequest
	if !bindJSON(c, &req, "noticeId is required") {
		return
	}
	if err := h.notices.Dismiss(c.Request.Context(), req.NoticeID, serverAddress(c, req.ServerAddress)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true, "message": "Notice dismissed"})
}

// Restore godoc
// @Summary Undo a dismissal
// @Tags Notices
// @Accept json
// @Produce json
// @Router /notices/restore [post]
func (h *NoticeHandler) Restore(c *gin.Context) {
	var req noticeActionRequest
	if !bindJSON(c, &req, "noticeId is required") {
		return
	}
	if err := h.notices.Restore(c.Request.Context(), req.NoticeID, serverAddress(c, req.ServerAddress)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true, "message": "Notice restored"})
}

// Recent godoc
// @Summary Undismissed notices of a server
// @Tags Notices
// @Produce json
// @Param X-Server-Address header string true "Serving wallet"
// @Router /notices/recent [get]
func (h *NoticeHandler) Recent(c *gin.Context) {
	recent, err := h.notices.ListRecent(c.Request.Context(), serverAddress(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recent)
}

// AllServed godoc
// @Summary Every notice of a server with statistics
// @Tags Notices
// @Produce json
// @Param X-Server-Address header string true "Serving wallet"
// @Router /notices/all-served [get]
func (h *NoticeHandler) AllServed(c *gin.Context) {
	served, err := h.notices.ListAll(c.Request.Context(), serverAddress(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, served)
}

// Export godoc
// @Summary CSV export of every notice of a server
// @Tags Notices
// @Produce text/csv
// @Param X-Server-Address header string true "Serving wallet"
// @Router /notices/all-served/export [get]
func (h *NoticeHandler) Export(c *gin.Context) {
	data, err := h.notices.ExportServed(c.Request.Context(), serverAddress(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	name := fmt.Sprintf("served-notices-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func safeFileName(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}
