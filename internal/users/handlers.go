// Package users serves signup, login and user lookup.
package users

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ageniuscoder/chatsphere/backend/internal/auth"
	"github.com/ageniuscoder/chatsphere/backend/internal/httpx"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type Service struct {
	Store     storage.UserStore
	JWTSecret string
	JWTTTLMin int
	// Online reports whether the user has a live connection.
	Online func(userID int64) bool
}

type signupReq struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResp struct {
	Token  string         `json:"token"`
	UserID int64          `json:"user_id"`
	User   model.Identity `json:"user"`
}

func RegisterPublic(rg *gin.RouterGroup, s *Service) {
	rg.POST("/signup", s.signup)
	rg.POST("/login", s.login)
}

func Register(rg *gin.RouterGroup, s *Service) {
	rg.GET("/me", s.getMe)
	rg.GET("/users/search", s.searchUsers)
	rg.GET("/users/:id/presence", s.presence)
}

func (s *Service) signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindErr(c, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	u, err := s.Store.CreateUser(c.Request.Context(), strings.TrimSpace(req.Username), hash)
	if errors.Is(err, storage.ErrConflict) {
		httpx.Err(c, http.StatusConflict, "Username Already Exists")
		return
	}
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	s.issue(c, *u)
}

func (s *Service) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindErr(c, err)
		return
	}
	u, err := s.Store.GetUserByName(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.Err(c, http.StatusUnauthorized, "Invalid Credentials")
			return
		}
		httpx.Fail(c, err)
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	s.issue(c, u.Identity)
}

func (s *Service) issue(c *gin.Context, u model.Identity) {
	tok, err := auth.NewToken(s.JWTSecret, u.ID, s.JWTTTLMin)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, tokenResp{Token: tok, UserID: u.ID, User: u})
}

func (s *Service) getMe(c *gin.Context) {
	uid := auth.MustUserID(c)
	if uid == 0 {
		httpx.Err(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := s.Store.GetUser(c.Request.Context(), uid)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, u)
}

func (s *Service) searchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		httpx.Err(c, http.StatusBadRequest, "query parameter is required")
		return
	}
	found, err := s.Store.SearchUsers(c.Request.Context(), query, 10)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	uid := auth.MustUserID(c)
	found = lo.Reject(found, func(u model.Identity, _ int) bool { return u.ID == uid })
	if found == nil {
		found = []model.Identity{}
	}
	httpx.OK(c, gin.H{"users": found})
}

func (s *Service) presence(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if _, err := s.Store.GetUser(c.Request.Context(), id); err != nil {
		httpx.Fail(c, err)
		return
	}
	online := s.Online != nil && s.Online(id)
	httpx.OK(c, gin.H{"user_id": id, "online": online})
}
