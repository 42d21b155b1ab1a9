package messages

import (
	"net/http"
	"strconv"

	"github.com/ageniuscoder/chatsphere/backend/internal/auth"
	"github.com/ageniuscoder/chatsphere/backend/internal/httpx"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/gin-gonic/gin"
)

type sendReq struct {
	ChatID      int64  `json:"chatId" binding:"required"`
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"messageType"`
}

type editReq struct {
	MessageID int64  `json:"messageId" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

type reactionReq struct {
	MessageID int64  `json:"messageId" binding:"required"`
	Emoji     string `json:"emoji" binding:"required"`
}

type handler struct {
	svc *Service
}

func Register(rg *gin.RouterGroup, svc *Service) {
	h := handler{svc: svc}
	rg.GET("/chats/:id/messages", h.list)
	rg.POST("/messages", h.send)
	rg.PUT("/messages/edit", h.edit)
	rg.DELETE("/messages/:id", h.delete)
	rg.POST("/messages/reaction", h.react)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Err(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h handler) list(c *gin.Context) {
	cid, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), auth.MustUserID(c), cid)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if list == nil {
		list = []model.Message{}
	}
	httpx.OK(c, list)
}

func (h handler) send(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindErr(c, err)
		return
	}
	kind, err := model.ParseKind(req.MessageType)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	m, err := h.svc.Send(c.Request.Context(), auth.MustUserID(c), req.ChatID, kind, req.Content)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, m)
}

func (h handler) edit(c *gin.Context) {
	var req editReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindErr(c, err)
		return
	}
	m, err := h.svc.Edit(c.Request.Context(), auth.MustUserID(c), req.MessageID, req.Content)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, m)
}

func (h handler) delete(c *gin.Context) {
	mid, ok := pathID(c)
	if !ok {
		return
	}
	m, err := h.svc.Delete(c.Request.Context(), auth.MustUserID(c), mid)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, m)
}

func (h handler) react(c *gin.Context) {
	var req reactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindErr(c, err)
		return
	}
	m, err := h.svc.React(c.Request.Context(), auth.MustUserID(c), req.MessageID, req.Emoji)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, m)
}
