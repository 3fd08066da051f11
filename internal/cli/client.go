package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"minibet/internal/api"
	"minibet/internal/game"
)

// Client talks to a minibet-api server for one user.
type Client struct {
	BaseURL string
	Token   string
	UserID  string
	HTTP    *http.Client
}

func NewClient(baseURL, token, userID string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		UserID:  strings.TrimSpace(userID),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response. It unwraps to the matching engine error
// when the server sent a known code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return api.ErrorForCode(e.Code)
}

type SessionState struct {
	UserID  string               `json:"user_id"`
	Session game.SessionSnapshot `json:"session"`
	Balance float64              `json:"balance"`
	Round   *game.Round          `json:"round,omitempty"`
}

type BalanceInfo struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
	Jackpot float64 `json:"jackpot"`
}

type Profile struct {
	UserID        string     `json:"user_id"`
	Balance       float64    `json:"balance"`
	Stats         game.Stats `json:"stats"`
	MinWithdrawal float64    `json:"min_withdrawal"`
	ReferralCode  string     `json:"referral_code"`
	Bot           string     `json:"bot"`
}

func (c *Client) Games(ctx context.Context) ([]game.GameInfo, error) {
	var out struct {
		Games []game.GameInfo `json:"games"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games", nil, &out)
	return out.Games, err
}

func (c *Client) Session(ctx context.Context) (SessionState, error) {
	var out SessionState
	err := c.jsonRequest(ctx, http.MethodGet, c.userPath("/session"), nil, &out)
	return out, err
}

func (c *Client) SelectGame(ctx context.Context, g game.GameID) (SessionState, error) {
	var out SessionState
	err := c.jsonRequest(ctx, http.MethodPost, c.userPath("/session/game"), map[string]any{"game": g}, &out)
	return out, err
}

func (c *Client) SelectOption(ctx context.Context, o game.OptionID) (SessionState, error) {
	var out SessionState
	err := c.jsonRequest(ctx, http.MethodPost, c.userPath("/session/option"), map[string]any{"option": o}, &out)
	return out, err
}

func (c *Client) Stake(ctx context.Context, amount float64) (SessionState, error) {
	var out SessionState
	err := c.jsonRequest(ctx, http.MethodPost, c.userPath("/session/stake"), map[string]any{"amount": amount}, &out)
	return out, err
}

// Play blocks for the whole resolve delay. When the server settled the round
// but could not persist it, the returned state still carries the round.
func (c *Client) Play(ctx context.Context) (SessionState, error) {
	var out SessionState
	err := c.jsonRequest(ctx, http.MethodPost, c.userPath("/session/play"), nil, &out)
	var apiErr *playError
	if errors.As(err, &apiErr) {
		return apiErr.result, apiErr.APIError
	}
	return out, err
}

func (c *Client) Ack(ctx context.Context) (SessionState, error) {
	var out SessionState
	err := c.jsonRequest(ctx, http.MethodPost, c.userPath("/session/ack"), nil, &out)
	return out, err
}

func (c *Client) Cancel(ctx context.Context) (SessionState, error) {
	var out SessionState
	err := c.jsonRequest(ctx, http.MethodPost, c.userPath("/session/cancel"), nil, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context) (BalanceInfo, error) {
	var out BalanceInfo
	err := c.jsonRequest(ctx, http.MethodGet, c.userPath("/balance"), nil, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.jsonRequest(ctx, http.MethodGet, c.userPath("/profile"), nil, &out)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, amount float64, wallet string) (game.Report, error) {
	var out struct {
		Report game.Report `json:"report"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, c.userPath("/withdrawals"), map[string]any{
		"amount":         amount,
		"wallet_address": wallet,
	}, &out)
	return out.Report, err
}

func (c *Client) userPath(suffix string) string {
	return "/v1/users/" + url.PathEscape(c.UserID) + suffix
}

type playError struct {
	*APIError
	result SessionState
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(status int, raw []byte) error {
	var payload struct {
		Error  string        `json:"error"`
		Code   string        `json:"code"`
		Result *SessionState `json:"result"`
	}
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(raw))}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Error
	}
	if payload.Result != nil {
		return &playError{APIError: apiErr, result: *payload.Result}
	}
	return apiErr
}
