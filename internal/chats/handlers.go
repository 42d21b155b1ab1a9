// Package chats serves chat creation, listing and group membership.
package chats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/auth"
	"github.com/ageniuscoder/chatsphere/backend/internal/httpx"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type Store interface {
	storage.ChatStore
	GetUser(ctx context.Context, id int64) (*model.Identity, error)
}

type Service struct {
	Store Store
	// OnLeave runs after userID stopped being a participant of chatID.
	OnLeave func(chatID, userID int64)
}

type privateReq struct {
	OtherUserID int64 `json:"other_user_id" binding:"required"`
}

type groupReq struct {
	Name      string  `json:"name" binding:"required,max=64"`
	MemberIDs []int64 `json:"member_ids" binding:"required,min=1"`
}

type addReq struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func Register(rg *gin.RouterGroup, store Store, onLeave func(chatID, userID int64)) {
	s := &Service{Store: store, OnLeave: onLeave}
	rg.POST("/chats/private", s.createOrGetPrivate)
	rg.POST("/chats/group", s.createGroup)
	rg.GET("/chats", s.listMine)
	rg.GET("/chats/:id", s.get)
	rg.POST("/chats/:id/participants", s.addParticipant)
	rg.DELETE("/chats/:id/participants/:userId", s.removeParticipant)
}

// OpenDirect returns the direct chat between uid and other, creating it on
// first use.
func (s *Service) OpenDirect(ctx context.Context, uid, other int64) (*model.Chat, error) {
	if other == uid {
		return nil, fmt.Errorf("%w: cannot open a chat with yourself", model.ErrValidation)
	}
	if _, err := s.Store.GetUser(ctx, other); err != nil {
		return nil, err
	}
	c, err := s.Store.FindDirectChat(ctx, uid, other)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return s.Store.CreateChat(ctx, storage.NewChat{ParticipantIDs: []int64{uid, other}})
}

func (s *Service) CreateGroup(ctx context.Context, uid int64, name string, members []int64) (*model.Chat, error) {
	ids := lo.Uniq(append([]int64{uid}, members...))
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: a group needs at least one other member", model.ErrValidation)
	}
	for _, id := range ids[1:] {
		if _, err := s.Store.GetUser(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.Store.CreateChat(ctx, storage.NewChat{IsGroup: true, Name: name, ParticipantIDs: ids, AdminID: uid})
}

// ListFor returns the chats of uid, most recently active first.
func (s *Service) ListFor(ctx context.Context, uid int64) ([]model.Chat, error) {
	list, err := s.Store.ListChatsFor(ctx, uid)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(list, func(a, b model.Chat) int {
		return activity(b).Compare(activity(a))
	})
	return list, nil
}

func activity(c model.Chat) time.Time {
	if c.LatestMessage != nil {
		return c.LatestMessage.CreatedAt
	}
	return c.CreatedAt
}

func (s *Service) member(ctx context.Context, uid, chatID int64) (*model.Chat, error) {
	c, err := s.Store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(uid) {
		return nil, fmt.Errorf("%w: not a participant of chat %d", model.ErrUnauthorized, chatID)
	}
	return c, nil
}

func (s *Service) admin(ctx context.Context, uid, chatID int64) error {
	c, err := s.member(ctx, uid, chatID)
	if err != nil {
		return err
	}
	if !c.IsGroup {
		return fmt.Errorf("%w: chat %d is not a group", model.ErrValidation, chatID)
	}
	ok, err := s.Store.IsAdmin(ctx, chatID, uid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: only the admin can change participants", model.ErrUnauthorized)
	}
	return nil
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Err(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (s *Service) createOrGetPrivate(c *gin.Context) {
	var req privateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindErr(c, err)
		return
	}
	chat, err := s.OpenDirect(c.Request.Context(), auth.MustUserID(c), req.OtherUserID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, chat)
}

func (s *Service) createGroup(c *gin.Context) {
	var req groupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindErr(c, err)
		return
	}
	chat, err := s.CreateGroup(c.Request.Context(), auth.MustUserID(c), req.Name, req.MemberIDs)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, chat)
}

func (s *Service) listMine(c *gin.Context) {
	list, err := s.ListFor(c.Request.Context(), auth.MustUserID(c))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, list)
}

func (s *Service) get(c *gin.Context) {
	cid, ok := pathID(c, "id")
	if !ok {
		return
	}
	chat, err := s.member(c.Request.Context(), auth.MustUserID(c), cid)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, chat)
}

func (s *Service) addParticipant(c *gin.Context) {
	cid, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindErr(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := s.admin(ctx, auth.MustUserID(c), cid); err != nil {
		httpx.Fail(c, err)
		return
	}
	if _, err := s.Store.GetUser(ctx, req.UserID); err != nil {
		httpx.Fail(c, err)
		return
	}
	if err := s.Store.AddParticipant(ctx, cid, req.UserID); err != nil {
		httpx.Fail(c, err)
		return
	}
	s.reply(c, cid)
}

// Leave removes target from chatID on behalf of uid. The admin of a group may
// remove anyone and any group member may leave. Direct chats cannot be left
// and a group keeps at least one participant.
func (s *Service) Leave(ctx context.Context, uid, chatID, target int64) error {
	if target == uid {
		if _, err := s.member(ctx, uid, chatID); err != nil {
			return err
		}
	} else if err := s.admin(ctx, uid, chatID); err != nil {
		return err
	}
	if err := s.Store.RemoveParticipant(ctx, chatID, target); err != nil {
		return err
	}
	if s.OnLeave != nil {
		s.OnLeave(chatID, target)
	}
	return nil
}

func (s *Service) removeParticipant(c *gin.Context) {
	cid, ok := pathID(c, "id")
	if !ok {
		return
	}
	target, ok := pathID(c, "userId")
	if !ok {
		return
	}
	uid := auth.MustUserID(c)
	if err := s.Leave(c.Request.Context(), uid, cid, target); err != nil {
		httpx.Fail(c, err)
		return
	}
	if target == uid {
		httpx.OK(c, gin.H{"ok": true})
		return
	}
	s.reply(c, cid)
}

func (s *Service) reply(c *gin.Context, cid int64) {
	chat, err := s.Store.GetChat(c.Request.Context(), cid)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, chat)
}
