package messages

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ageniuscoder/chatsphere/backend/internal/auth"
	"github.com/ageniuscoder/chatsphere/backend/internal/blob"
	"github.com/ageniuscoder/chatsphere/backend/internal/httpx"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const DefaultMaxUpload = 10 << 20

// KindForMIME maps a sniffed MIME type onto a message kind.
func KindForMIME(mime string) model.Kind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return model.KindImage
	case strings.HasPrefix(mime, "audio/"):
		return model.KindAudio
	default:
		return model.KindFile
	}
}

type Uploader struct {
	Blobs    blob.Provider
	Service  *Service
	MaxBytes int64
}

func RegisterUpload(rg *gin.RouterGroup, u *Uploader) {
	rg.POST("/files/upload", u.upload)
}

func (u *Uploader) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	chatID, err := strconv.ParseInt(c.PostForm("chatId"), 10, 64)
	if err != nil || chatID <= 0 {
		httpx.Err(c, http.StatusBadRequest, "Chat ID is required")
		return
	}
	limit := u.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxUpload
	}
	if fh.Size > limit {
		httpx.Fail(c, fmt.Errorf("%w: file exceeds %d bytes", model.ErrValidation, limit))
		return
	}
	uid := auth.MustUserID(c)
	if _, err := u.Service.Engine.participantChat(c.Request.Context(), uid, chatID); err != nil {
		httpx.Fail(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if int64(len(data)) > limit {
		httpx.Fail(c, fmt.Errorf("%w: file exceeds %d bytes", model.ErrValidation, limit))
		return
	}

	mime := mimetype.Detect(data).String()
	kind := KindForMIME(mime)
	if t := c.PostForm("messageType"); t != "" {
		if kind, err = model.ParseKind(t); err != nil {
			httpx.Fail(c, err)
			return
		}
		if kind == model.KindText {
			httpx.Fail(c, fmt.Errorf("%w: uploads cannot be text messages", model.ErrValidation))
			return
		}
	}

	m, err := u.store(c.Request.Context(), uid, chatID, kind, filepath.Base(fh.Filename), mime, data)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, m)
}

// store writes the object and creates its message. The object is removed again
// when the message cannot be created.
func (u *Uploader) store(ctx context.Context, uid, chatID int64, kind model.Kind, original, mime string, data []byte) (*model.Message, error) {
	object := uuid.NewString() + "_" + original
	url, err := u.Blobs.Put(ctx, object, mime, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	content, err := model.NewContent(kind, original, &model.File{URL: url, Name: original, Size: int64(len(data)), MIME: mime})
	if err != nil {
		u.discard(ctx, object)
		return nil, err
	}
	m, err := u.Service.SendContent(ctx, uid, chatID, content)
	if err != nil {
		u.discard(ctx, object)
		return nil, err
	}
	return m, nil
}

func (u *Uploader) discard(ctx context.Context, object string) {
	if err := u.Blobs.Delete(context.WithoutCancel(ctx), object); err != nil {
		u.Service.Log.Warn("[messages] orphaned upload", "object", object, "err", err)
	}
}
