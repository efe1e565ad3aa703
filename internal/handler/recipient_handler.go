package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/response"
)

type recipientNoticeLister interface {
	ListForRecipient(ctx context.Context, recipientAddress string) ([]models.RecipientNotice, error)
}

type accessGate interface {
	RecipientDocument(ctx context.Context, wallet string, alertTokenID int64, meta models.RequestMeta) (*models.RecipientDocument, error)
	Accept(ctx context.Context, wallet string, alertTokenID int64, in models.AcceptInput, meta models.RequestMeta) (*models.SignResult, error)
}

// RecipientHandler serves the wallet-gated recipient endpoints.
type RecipientHandler struct {
	notices recipientNoticeLister
	access  accessGate
}

// NewRecipientHandler constructs the handler.
func NewRecipientHandler(notices recipientNoticeLister, access accessGate) *RecipientHandler {
	return &RecipientHandler{notices: notices, access: access}
}

// Notices godoc
// @Summary Notices addressed to a wallet
// @Tags Recipient
// @Produce json
// @Param address path string true "Recipient wallet"
// @Router /recipient/{address}/notices [get]
func (h *RecipientHandler) Notices(c *gin.Context) {
	items, err := h.notices.ListForRecipient(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"notices": items, "total": len(items)})
}

// Document godoc
// @Summary Document of a notice for an authorized wallet
// @Description The recipient's first fetch records a view.
// @Tags Recipient
// @Produce json
// @Param address path string true "Requesting wallet"
// @Param alertId path int true "Alert token id"
// @Failure 403 {object} response.ErrorEnvelope
// @Router /recipient/{address}/notice/{alertId}/document [get]
func (h *RecipientHandler) Document(c *gin.Context) {
	alertID, err := parseTokenParam(c, "alertId")
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.access.RecipientDocument(c.Request.Context(), c.Param("address"), alertID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc)
}

// Accept godoc
// @Summary Sign for a notice
// @Tags Recipient
// @Accept json
// @Produce json
// @Param address path string true "Recipient wallet"
// @Param alertId path int true "Alert token id"
// @Param payload body models.AcceptInput true "Signature"
// @Router /recipient/{address}/notice/{alertId}/accept [post]
func (h *RecipientHandler) Accept(c *gin.Context) {
	alertID, err := parseTokenParam(c, "alertId")
	if err != nil {
		response.Error(c, err)
		return
	}
	var in models.AcceptInput
	if !bindJSON(c, &in, "invalid acceptance payload") {
		return
	}
	result, err := h.access.Accept(c.Request.Context(), c.Param("address"), alertID, in, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "Notice accepted"
	if result.AlreadySigned {
		message = "Notice was already accepted"
	}
	response.JSON(c, http.StatusOK, gin.H{
		"success":       true,
		"alreadySigned": result.AlreadySigned,
		"signedAt":      result.SignedAt,
		"message":       message,
	})
}
