package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
)

// ErrorEnvelope is the body written for failed requests.
type ErrorEnvelope struct {
	Success bool             `json:"success"`
	Error   *appErrors.Error `json:"error"`
}

// JSON sends a success payload as-is. Callers own the response shape.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, data)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response converting the error to the common structure.
// The full error is attached to the gin context for the request logger; 5xx detail never
// reaches the client.
func Error(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	appErr := appErrors.Public(appErrors.FromError(err))
	if appErr == nil {
		appErr = appErrors.ErrInternal
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, ErrorEnvelope{Success: false, Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
