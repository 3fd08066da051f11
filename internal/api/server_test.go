package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"minibet/internal/balance"
	"minibet/internal/config"
	"minibet/internal/game"
	"minibet/internal/kv"
	"minibet/internal/metrics"
)

type fixture struct {
	srv     *httptest.Server
	store   *balance.Store
	metrics *metrics.Metrics
	server  *Server
}

func newFixture(t *testing.T, rng game.RandomSource, apiCfg config.APIConfig) *fixture {
	t.Helper()
	store := balance.New(kv.NewMemory(), nil)
	if err := store.Save(context.Background(), "12345", 100); err != nil {
		t.Fatal(err)
	}
	reg := game.NewRegistry(game.Deps{
		Store:    store,
		Resolver: game.NewResolver(rng, game.MissStrict),
	})
	m := metrics.New()
	reg.OnEvent(m.ObserveEvent)
	s := New(apiCfg, config.BotConfig{Username: "minibet_bot"}, nil, reg, m)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Hub().Run(ctx) }()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &fixture{srv: srv, store: store, metrics: m, server: s}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestFullRoundOverHTTP(t *testing.T) {
	f := newFixture(t, game.NewFixedSource(game.FaceValue(4)), config.APIConfig{})
	base := "/v1/users/12345"

	if code, out := f.do(t, http.MethodPost, base+"/session/game", map[string]any{"game": "Dice"}); code != 200 {
		t.Fatalf("select game %d %v", code, out)
	}
	if code, out := f.do(t, http.MethodPost, base+"/session/option", map[string]any{"option": "even"}); code != 200 {
		t.Fatalf("select option %d %v", code, out)
	}
	if code, out := f.do(t, http.MethodPost, base+"/session/stake", map[string]any{"amount": 20}); code != 200 {
		t.Fatalf("stake %d %v", code, out)
	}
	code, out := f.do(t, http.MethodPost, base+"/session/play", nil)
	if code != 200 {
		t.Fatalf("play %d %v", code, out)
	}
	if out["balance"] != 116.0 {
		t.Fatalf("unexpected balance %v", out["balance"])
	}
	round := out["round"].(map[string]any)
	if round["outcome"].(map[string]any)["dice_face"] != 4.0 {
		t.Fatalf("unexpected round %v", round)
	}
	if got := f.store.Load(context.Background(), "12345").Amount; got != 116 {
		t.Fatalf("persisted %v", got)
	}

	code, out = f.do(t, http.MethodPost, base+"/session/ack", nil)
	if code != 200 || out["session"].(map[string]any)["state"] != "idle" {
		t.Fatalf("ack %d %v", code, out)
	}
	if got := testutil.ToFloat64(f.metrics.Rounds.WithLabelValues("dice", "win")); got != 1 {
		t.Fatalf("rounds metric %v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, nil, config.APIConfig{})
	base := "/v1/users/12345"

	tests := []struct {
		path   string
		body   any
		status int
		code   string
	}{
		{"/session/option", map[string]any{"option": "even"}, 400, "invalid_transition"},
		{"/session/game", map[string]any{"game": "poker"}, 400, "invalid_option"},
		{"/session/game", map[string]any{"game": "dice"}, 200, ""},
		{"/session/option", map[string]any{"option": "goal"}, 400, "invalid_option"},
		{"/session/option", map[string]any{"option": "odd"}, 200, ""},
		{"/session/stake", map[string]any{"amount": 0}, 400, "invalid_stake"},
		{"/session/stake", map[string]any{"amount": "abc"}, 400, ""},
		{"/session/stake", map[string]any{"amount": 500}, 402, "insufficient_funds"},
		{"/session/ack", nil, 400, "invalid_transition"},
		{"/session/play", nil, 400, "invalid_transition"},
		{"/withdrawals", map[string]any{"amount": 10, "wallet_address": "w"}, 400, "below_minimum"},
		{"/withdrawals", map[string]any{"amount": 60}, 400, "missing_wallet"},
		{"/withdrawals", map[string]any{"amount": 600, "wallet_address": "w"}, 402, "insufficient_funds"},
		{"/withdrawals", map[string]any{"amount": 60, "wallet_address": "w"}, 202, ""},
	}
	for _, tc := range tests {
		code, out := f.do(t, http.MethodPost, base+tc.path, tc.body)
		if code != tc.status {
			t.Fatalf("%s %v: status %d want %d (%v)", tc.path, tc.body, code, tc.status, out)
		}
		if tc.code != "" && out["code"] != tc.code {
			t.Fatalf("%s %v: code %v want %s", tc.path, tc.body, out["code"], tc.code)
		}
	}

	if code, _ := f.do(t, http.MethodPost, base+"/session/game", map[string]any{"game": "dice", "extra": 1}); code != 400 {
		t.Fatalf("unknown fields must be rejected, got %d", code)
	}
}

func TestBusyWhileResolving(t *testing.T) {
	f := newFixture(t, game.NewFixedSource(game.FaceValue(1)), config.APIConfig{})
	c, _ := f.server.registry.Get(context.Background(), "12345")
	_ = c.SelectGame(game.Dice)
	_ = c.SelectOption(game.OptionLess)
	_ = c.SubmitStake(10)
	_ = c.SelectGame(game.Football)

	code, out := f.do(t, http.MethodPost, "/v1/users/12345/session/game", map[string]any{"game": "football"})
	if code != http.StatusConflict || out["code"] != "session_busy" {
		t.Fatalf("expected 409 session_busy, got %d %v", code, out)
	}
}

func TestGamesBalanceProfile(t *testing.T) {
	f := newFixture(t, nil, config.APIConfig{})

	code, out := f.do(t, http.MethodGet, "/v1/games", nil)
	games := out["games"].([]any)
	if code != 200 || len(games) != 3 {
		t.Fatalf("games %d %v", code, out)
	}
	if games[0].(map[string]any)["id"] != "basketball" {
		t.Fatalf("unexpected first game %v", games[0])
	}

	code, out = f.do(t, http.MethodGet, "/v1/users/12345/balance", nil)
	if code != 200 || out["balance"] != 100.0 || out["jackpot"] != 0.0 {
		t.Fatalf("balance %d %v", code, out)
	}

	code, out = f.do(t, http.MethodGet, "/v1/users/12345/profile", nil)
	if code != 200 || out["referral_code"] != "REF12345" {
		t.Fatalf("profile %d %v", code, out)
	}
}

func TestTokenAuth(t *testing.T) {
	f := newFixture(t, nil, config.APIConfig{Token: "s3cret"})
	if code, _ := f.do(t, http.MethodGet, "/v1/users/12345/balance", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/v1/users/12345/balance", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if code, _ := f.do(t, http.MethodGet, "/v1/games", nil); code != 200 {
		t.Fatalf("catalog must stay public, got %d", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil, config.APIConfig{})
	if code, out := f.do(t, http.MethodGet, "/healthz", nil); code != 200 || out["ok"] != true {
		t.Fatalf("healthz %d %v", code, out)
	}
	resp, err := http.Get(f.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "minibet_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, game.NewFixedSource(game.FaceValue(2)), config.APIConfig{})
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/users/12345/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first envelope
	if err := conn.ReadJSON(&first); err != nil || first.Type != "snapshot" {
		t.Fatalf("expected snapshot first, got %+v err=%v", first, err)
	}

	if code, _ := f.do(t, http.MethodPost, "/v1/users/12345/session/game", map[string]any{"game": "dice"}); code != 200 {
		t.Fatalf("select game %d", code)
	}
	var msg struct {
		Type    string     `json:"type"`
		Payload game.Event `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.Type != "event" || msg.Payload.To != game.StateGameSelected || msg.Payload.UserID != "12345" {
		t.Fatalf("unexpected event %+v", msg)
	}
}

func TestErrorForCode(t *testing.T) {
	if ErrorForCode("session_busy") != game.ErrSessionBusy {
		t.Fatal("session_busy should map back")
	}
	if ErrorForCode("nope") != nil {
		t.Fatal("unknown code must map to nil")
	}
}

func TestIdleSessionsAreSwept(t *testing.T) {
	f := newFixture(t, nil, config.APIConfig{SessionIdle: config.Duration{Duration: time.Millisecond}})
	for i := 0; i < 200; i++ {
		path := "/v1/users/" + strconv.Itoa(1000+i) + "/balance"
		if code, out := f.do(t, http.MethodGet, path, nil); code != 200 {
			t.Fatalf("balance %d %v", code, out)
		}
	}
	if n := f.server.registry.Len(); n != 200 {
		t.Fatalf("registry len=%d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.SweepSessions(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for f.server.registry.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sessions not swept, len=%d", f.server.registry.Len())
		}
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("sweeper: %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.ActiveSessions); got != 0 {
		t.Fatalf("active sessions gauge=%v", got)
	}
}
