package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/catalog"
	"escape-room-service/internal/domain"
	"escape-room-service/internal/scoring"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSConfig wires a WSHandler. Gateway and Rounds are required.
type WSConfig struct {
	Gateway  app.Gateway
	Rounds   app.RoundRepository
	RoundID  string
	Options  app.Options
	Rules    scoring.Rules
	Verifier *TokenVerifier // nil accepts anonymous participants only
	Presence app.Presence   // nil disables the one-connection-per-uid claim
	Logger   *slog.Logger

	PresenceTTL    time.Duration // default: 30 seconds
	PersistTimeout time.Duration // default: 10 seconds
	TickInterval   time.Duration // default: 1 second
	ResyncEvery    int           // ticks between clock resyncs, 0 disables
}

// WSHandler runs one controller per websocket connection.
type WSHandler struct {
	cfg      WSConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(cfg WSConfig) *WSHandler {
	if cfg.RoundID == "" {
		cfg.RoundID = catalog.DefaultRoundID
	}
	if cfg.PresenceTTL <= 0 {
		cfg.PresenceTTL = 30 * time.Second
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type startPayload struct {
	Name   string `json:"name"`
	RollNo string `json:"rollNo"`
}

type confirmPayload struct {
	Confirmed bool `json:"confirmed"`
}

type navigatePayload struct {
	Challenge int `json:"challenge"`
}

type fullscreenReport struct {
	Active bool `json:"active"`
}

type errorPayload struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

var (
	errUnsupported    = errors.New("unsupported message type")
	errInvalidPayload = errors.New("invalid payload")
)

// ServeWS upgrades HTTP requests to websockets and drives a session controller from
// the participant's messages. A signed-in participant's stored session is resumed
// before the first message is read. Clients that are already fullscreen when they
// connect pass ?fullscreen=true; otherwise a resumed round starts the grace warning
// until a "fullscreen" message reports otherwise.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principal(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	round, err := h.cfg.Rounds.GetRound(r.Context(), h.cfg.RoundID)
	if err != nil {
		h.logger.Error("load round failed", "round", h.cfg.RoundID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "round unavailable")
		return
	}
	cat, err := catalog.New(round)
	if err != nil {
		h.logger.Error("invalid round", "round", h.cfg.RoundID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "round unavailable")
		return
	}

	owner := uuid.NewString()
	release, err := h.claim(r.Context(), principal, owner)
	switch {
	case errors.Is(err, domain.ErrSessionBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("presence claim failed", "uid", principal.UID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "presence unavailable")
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := h.logger.With("conn", owner)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	emit := func(msg outboundMessage[any]) { send <- msg }

	platform := &wsPlatform{emit: emit, active: r.URL.Query().Get("fullscreen") == "true"}
	approval := app.NewApproval()
	queue := app.NewPersistQueue(h.cfg.PersistTimeout, logger)
	ctrl := app.NewController(app.Deps{
		Gateway:   h.cfg.Gateway,
		Catalog:   cat,
		Platform:  platform,
		Confirm:   approval,
		Rules:     h.cfg.Rules,
		Executor:  queue,
		Logger:    logger,
		Principal: principal,
	}, h.cfg.Options)
	runner := app.NewRunner(ctrl, h.cfg.TickInterval, h.cfg.ResyncEvery)
	views, unsubscribe := ctrl.Subscribe()

	go queue.Run(ctx)
	go runner.Run(ctx)
	if principal.UID != "" && h.cfg.Presence != nil {
		go h.keepPresence(ctx, principal, owner)
	}

	// The writer keeps draining after a failed write so the host loop never blocks on send.
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", "error", err)
				failed = true
				_ = conn.Close()
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-views:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if principal.UID != "" {
		send <- outboundMessage[any]{Type: "principal", Payload: principal}
		err := runner.Do(ctx, func(c *app.Controller) error {
			res, err := c.Resume(ctx, principal)
			if err == nil {
				logger.Info("session lookup on connect", "uid", principal.UID, "outcome", res.Outcome.String())
			}
			return err
		})
		if err != nil {
			logger.Warn("session lookup on connect failed", "uid", principal.UID, "error", err)
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws read error", "error", err)
			}
			break
		}
		if err := h.dispatch(ctx, logger, runner, platform, approval, inbound); err != nil {
			send <- errorMessage(err)
		}
	}

	// Stop the loop before closing send: the platform writes to it from there.
	cancel()
	<-runner.Done()
	<-queue.Done()
	close(closeSignals)
	<-updatesDone
	unsubscribe()
	close(send)
	<-writerDone
	logger.Info("ws connection closed")
}

func (h *WSHandler) dispatch(ctx context.Context, logger *slog.Logger, runner *app.Runner, platform *wsPlatform, approval *app.Approval, msg inboundMessage) error {
	switch msg.Type {
	case "start":
		var p startPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		return runner.Do(ctx, func(c *app.Controller) error { return c.Start(ctx, p.Name, p.RollNo) })
	case "correct":
		return runner.Do(ctx, func(c *app.Controller) error { return c.Correct() })
	case "wrong":
		return runner.Do(ctx, func(c *app.Controller) error { return c.Wrong() })
	case "hint", "skip", "quit":
		var p confirmPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		return runner.Do(ctx, func(c *app.Controller) error {
			approval.Arm(p.Confirmed)
			switch msg.Type {
			case "hint":
				return c.Hint(ctx)
			case "skip":
				return c.Skip(ctx)
			default:
				return c.Quit(ctx)
			}
		})
	case "closeHint":
		return runner.Do(ctx, func(c *app.Controller) error { return c.CloseHint() })
	case "navigate":
		var p navigatePayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		return runner.Do(ctx, func(c *app.Controller) error { return c.Navigate(p.Challenge) })
	case "fullscreen":
		var p fullscreenReport
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		return runner.Do(ctx, func(c *app.Controller) error {
			platform.active = p.Active
			c.OnFullscreenChange(p.Active)
			return nil
		})
	case "fullscreenDenied":
		logger.Warn("fullscreen request failed", "error", domain.ErrFullscreenDenied)
		return nil
	default:
		return errUnsupported
	}
}

func (h *WSHandler) principal(r *http.Request) (domain.Identity, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return domain.Identity{}, nil
	}
	if h.cfg.Verifier == nil {
		return domain.Identity{}, fmt.Errorf("%w: sign-in is not configured", ErrInvalidToken)
	}
	return h.cfg.Verifier.Verify(raw)
}

// claim takes exclusive ownership of an authenticated identity for this connection.
// Anonymous participants are not tracked.
func (h *WSHandler) claim(ctx context.Context, principal domain.Identity, owner string) (func(), error) {
	if h.cfg.Presence == nil || principal.UID == "" {
		return func() {}, nil
	}
	key := presenceKey(principal)
	ok, err := h.cfg.Presence.Acquire(ctx, key, owner, h.cfg.PresenceTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	if !ok {
		return nil, domain.ErrSessionBusy
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.cfg.Presence.Release(ctx, key, owner); err != nil {
			h.logger.Warn("presence release failed", "uid", principal.UID, "error", err)
		}
	}, nil
}

func (h *WSHandler) keepPresence(ctx context.Context, principal domain.Identity, owner string) {
	ticker := time.NewTicker(h.cfg.PresenceTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.cfg.Presence.Refresh(ctx, presenceKey(principal), owner, h.cfg.PresenceTTL); err != nil {
				h.logger.Warn("presence refresh failed", "uid", principal.UID, "error", err)
			}
		}
	}
}

func presenceKey(principal domain.Identity) string {
	return "uid:" + principal.UID
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errInvalidPayload
	}
	return nil
}

func errorMessage(err error) outboundMessage[any] {
	payload := errorPayload{Message: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		payload.Field = ve.Field
	}
	return outboundMessage[any]{Type: "error", Payload: payload}
}
