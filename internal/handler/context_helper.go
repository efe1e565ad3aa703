package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/middleware"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/response"
)

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// serverAddress prefers the header/query value resolved by middleware over the body.
func serverAddress(c *gin.Context, body string) string {
	if v := middleware.ServerAddressFromContext(c); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderServerAddress)); v != "" {
		return v
	}
	return strings.TrimSpace(body)
}

func parseTokenParam(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a non-negative integer")
	}
	return id, nil
}

func parseLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// readUpload loads one multipart field, enforcing max. A missing field returns ok=false and no error.
func readUpload(c *gin.Context, field string, max int64) ([]byte, *multipart.FileHeader, bool, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, false, nil
		}
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart upload")
	}
	if header.Size > max {
		return nil, nil, false, appErrors.Clone(appErrors.ErrValidation, field+" exceeds the upload limit")
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload")
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(io.LimitReader(file, max+1))
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload")
	}
	if int64(len(data)) > max {
		return nil, nil, false, appErrors.Clone(appErrors.ErrValidation, field+" exceeds the upload limit")
	}
	return data, header, true, nil
}
