package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
	"github.com/ageniuscoder/chatsphere/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func OK(c *gin.Context, v any) {
	c.JSON(200, v)
}

func Err(c *gin.Context, code int, msg any) {
	c.JSON(code, gin.H{"error": msg})
}

// BindErr reports a failed ShouldBindJSON, listing field errors when the
// validator produced them.
func BindErr(c *gin.Context, err error) {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
		return
	}
	Err(c, http.StatusBadRequest, err.Error())
}

// Fail writes err with the status of its kind. Unknown errors are logged and
// hidden behind a generic 500.
func Fail(c *gin.Context, err error) {
	kind := model.KindOf(err)
	var code int
	switch kind {
	case "validation", "time_window_expired":
		code = http.StatusBadRequest
	case "authorization":
		code = http.StatusForbidden
	case "not_found":
		code = http.StatusNotFound
	default:
		if errors.Is(err, storage.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "already exists", "code": "conflict"})
			return
		}
		slog.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": kind})
		return
	}
	c.JSON(code, gin.H{"error": err.Error(), "code": kind})
}
