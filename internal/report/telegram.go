package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"minibet/internal/game"
)

const telegramAPI = "https://api.telegram.org"

// Telegram forwards reports to the bot chat that handles payouts. The text
// carries the raw JSON so the bot can parse it back.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, r game.Report) error {
	text, err := telegramText(r)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func telegramText(r game.Report) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	var head string
	switch r.Action {
	case game.ActionPlaceBet:
		head = fmt.Sprintf("%s %s/%s stake %.2f", strings.ToUpper(r.GameResult), r.GameType, r.BetOption, r.BetAmount)
	case game.ActionWithdrawalRequest:
		head = fmt.Sprintf("WITHDRAWAL %.2f", r.Amount)
	default:
		head = r.Action
	}
	return head + "\n" + string(raw), nil
}
