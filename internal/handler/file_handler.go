package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/response"
)

type imageOpener interface {
	OpenImage(ctx context.Context, token string) (io.ReadCloser, string, error)
}

// FileHandler streams record images behind signed tokens.
type FileHandler struct {
	images imageOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(images imageOpener) *FileHandler {
	return &FileHandler{images: images}
}

// Download godoc
// @Summary Download a record image
// @Tags Files
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /files [get]
func (h *FileHandler) Download(c *gin.Context) {
	if h.images == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "file service not configured"))
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	reader, contentType, err := h.images.OpenImage(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}
