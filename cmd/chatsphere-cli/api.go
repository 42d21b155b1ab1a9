package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
)

// api is a thin REST client for the chat server.
type api struct {
	base  string
	token string
	http  *http.Client
}

func newAPI(base, token string) *api {
	return &api{
		base:  strings.TrimSuffix(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Status int
	Msg    string `json:"error"`
	Code   string `json:"code"`
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Msg)
}

func (a *api) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type loginResp struct {
	Token  string         `json:"token"`
	UserID int64          `json:"user_id"`
	User   model.Identity `json:"user"`
}

func (a *api) Login(ctx context.Context, username, password string) (*loginResp, error) {
	var out loginResp
	err := a.do(ctx, http.MethodPost, "/api/login", map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	a.token = out.Token
	return &out, nil
}

func (a *api) Me(ctx context.Context) (*model.Identity, error) {
	var out model.Identity
	if err := a.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *api) Chats(ctx context.Context) ([]model.Chat, error) {
	var out []model.Chat
	if err := a.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *api) Messages(ctx context.Context, chatID int64) ([]model.Message, error) {
	var out []model.Message
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", chatID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *api) Send(ctx context.Context, chatID int64, text string) (*model.Message, error) {
	var out model.Message
	in := map[string]any{"chatId": chatID, "content": text, "messageType": model.KindText}
	if err := a.do(ctx, http.MethodPost, "/api/messages", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *api) React(ctx context.Context, messageID int64, emoji string) (*model.Message, error) {
	var out model.Message
	in := map[string]any{"messageId": messageID, "emoji": emoji}
	if err := a.do(ctx, http.MethodPost, "/api/messages/reaction", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// wsURL turns the server base URL into the websocket endpoint.
func (a *api) wsURL() (string, error) {
	u, err := url.Parse(a.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/ws"
	u.RawQuery = url.Values{"token": {a.token}}.Encode()
	return u.String(), nil
}
