package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"minibet/internal/config"
	"minibet/internal/game"
	"minibet/internal/metrics"
)

type contextKey string

const controllerContextKey contextKey = "controller"

type Server struct {
	cfg      config.APIConfig
	bot      config.BotConfig
	log      *slog.Logger
	registry *game.Registry
	metrics  *metrics.Metrics
	hub      *Hub
	mux      *chi.Mux
}

func New(cfg config.APIConfig, bot config.BotConfig, logger *slog.Logger, registry *game.Registry, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	logger = logger.With(slog.String("component", "api"))
	s := &Server{
		cfg:      cfg,
		bot:      bot,
		log:      logger,
		registry: registry,
		metrics:  m,
		hub:      NewHub(logger),
		mux:      chi.NewRouter(),
	}
	registry.OnEvent(s.hub.Publish)
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// SweepSessions drops idle user sessions until ctx is done. A zero
// api.session_idle keeps every session.
func (s *Server) SweepSessions(ctx context.Context) error {
	idle := s.cfg.SessionIdle.Duration
	if idle <= 0 {
		return nil
	}
	interval := max(idle/4, time.Second)
	return s.registry.RunSweeper(ctx, interval, idle, func(dropped, remaining int) {
		s.metrics.ActiveSessions.Set(float64(remaining))
		if dropped > 0 {
			s.log.Debug("idle sessions dropped", "dropped", dropped, "remaining", remaining)
		}
	})
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/games", s.handleGames)

		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.controllerMiddleware)

			// The websocket stays open indefinitely, so it sits outside the
			// request timeout.
			r.Get("/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Get("/session", s.handleSession)
				r.Post("/session/game", s.handleSelectGame)
				r.Post("/session/option", s.handleSelectOption)
				r.Post("/session/stake", s.handleStake)
				r.Post("/session/play", s.handlePlay)
				r.Post("/session/ack", s.handleAck)
				r.Post("/session/cancel", s.handleCancel)
				r.Get("/balance", s.handleBalance)
				r.Get("/profile", s.handleProfile)
				r.Post("/withdrawals", s.handleWithdrawal)
			})
		})
	})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// authMiddleware is a no-op unless an API token is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) controllerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := s.registry.Get(r.Context(), chi.URLParam(r, "user_id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s.metrics.ActiveSessions.Set(float64(s.registry.Len()))
		ctx := context.WithValue(r.Context(), controllerContextKey, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func controllerFrom(ctx context.Context) *game.Controller {
	c, _ := ctx.Value(controllerContextKey).(*game.Controller)
	return c
}

type sessionResponse struct {
	UserID  string               `json:"user_id"`
	Session game.SessionSnapshot `json:"session"`
	Balance float64              `json:"balance"`
	Round   *game.Round          `json:"round,omitempty"`
}

func snapshotOf(c *game.Controller) sessionResponse {
	snap, bal := c.Snapshot()
	return sessionResponse{UserID: c.UserID(), Session: snap, Balance: bal}
}

func (s *Server) handleGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"games": game.Catalog(s.registry.Odds())})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotOf(controllerFrom(r.Context())))
}

func (s *Server) handleSelectGame(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Game string `json:"game"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := controllerFrom(r.Context())
	if err := c.SelectGame(game.GameID(strings.ToLower(strings.TrimSpace(in.Game)))); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(c))
}

func (s *Server) handleSelectOption(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Option string `json:"option"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := controllerFrom(r.Context())
	if err := c.SelectOption(game.OptionID(strings.ToLower(strings.TrimSpace(in.Option)))); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(c))
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount json.Number `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := game.ParseAmount(in.Amount.String())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	c := controllerFrom(r.Context())
	if err := c.SubmitStake(amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(c))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r.Context())
	round, err := c.Play(r.Context())
	if err != nil {
		s.metrics.ObserveError(err)
		if errors.Is(err, game.ErrPersistence) {
			resp := snapshotOf(c)
			resp.Round = &round
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":  err.Error(),
				"code":   errorCode(err),
				"result": resp,
			})
			return
		}
		writeDomainError(w, err)
		return
	}
	resp := snapshotOf(c)
	resp.Round = &round
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r.Context())
	if err := c.Acknowledge(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(c))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r.Context())
	if err := c.Cancel(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(c))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": c.UserID(),
		"balance": c.Balance(),
		"jackpot": c.Jackpot(r.Context()),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        c.UserID(),
		"balance":        c.Balance(),
		"stats":          c.Stats(r.Context()),
		"min_withdrawal": c.MinWithdrawal(),
		"referral_code":  "REF" + c.UserID(),
		"bot":            s.bot.Username,
	})
}

func (s *Server) handleWithdrawal(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount        json.Number `json:"amount"`
		WalletAddress string      `json:"wallet_address"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := game.ParseAmount(in.Amount.String())
	if err != nil {
		writeDomainError(w, game.ErrInvalidAmount)
		return
	}
	c := controllerFrom(r.Context())
	rep, err := c.RequestWithdrawal(r.Context(), amount, in.WalletAddress)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "requested", "report": rep})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r.Context())
	s.hub.HandleWS(w, r, c.UserID(), snapshotOf(c))
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{game.ErrInvalidOption, "invalid_option", http.StatusBadRequest},
	{game.ErrInvalidStake, "invalid_stake", http.StatusBadRequest},
	{game.ErrInvalidAmount, "invalid_amount", http.StatusBadRequest},
	{game.ErrInvalidTransition, "invalid_transition", http.StatusBadRequest},
	{game.ErrBelowMinimum, "below_minimum", http.StatusBadRequest},
	{game.ErrMissingWallet, "missing_wallet", http.StatusBadRequest},
	{game.ErrMissingUser, "missing_user", http.StatusBadRequest},
	{game.ErrInsufficientFunds, "insufficient_funds", http.StatusPaymentRequired},
	{game.ErrSessionBusy, "session_busy", http.StatusConflict},
	{game.ErrUnknownOption, "unknown_option", http.StatusInternalServerError},
	{game.ErrPersistence, "persistence", http.StatusServiceUnavailable},
}

func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

// ErrorForCode maps a response code back to its sentinel.
func ErrorForCode(code string) error {
	for _, e := range errorCodes {
		if e.code == code {
			return e.err
		}
	}
	return nil
}

func writeDomainError(w http.ResponseWriter, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			writeJSON(w, e.status, map[string]any{"error": err.Error(), "code": e.code})
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "code": "internal"})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
