package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/loop-engine/pkg/dialogue"
	"github.com/jwebster45206/loop-engine/pkg/engine"
	"github.com/jwebster45206/loop-engine/pkg/queue"
)

type LoopResetResponse struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type LoopQueuedResponse struct {
	RequestID string `json:"request_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
}

type LoopDialogueResponse struct {
	Loop  int             `json:"loop"`
	Entry *dialogue.Entry `json:"entry"`
}

func (h *GameStateHandler) handleLoop(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID, action string) {
	if action == "dialogue" {
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.view(w, r, gameStateID, func(s *engine.Session) (any, error) {
			e, err := s.LoopDialogue()
			return LoopDialogueResponse{Loop: s.Loop(), Entry: e}, err
		})
		return
	}

	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r, "POST")
		return
	}

	switch action {
	case "advance":
		h.update(w, r, gameStateID, func(s *engine.Session) (any, error) {
			return s.RequestLoopAdvance(), nil
		})
	case "reset":
		h.update(w, r, gameStateID, func(s *engine.Session) (any, error) {
			from := s.Loop()
			s.ResetLoop()
			return LoopResetResponse{From: from, To: s.Loop()}, nil
		})
	case "boundary":
		h.handleBoundary(w, r, gameStateID)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown loop action: "+action)
	}
}

// handleBoundary queues a loop boundary for the workers and returns at once.
// The outcome arrives on the game's event stream.
func (h *GameStateHandler) handleBoundary(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) {
	if h.requests == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "Loop queue is not configured")
		return
	}

	gs, err := h.storage.LoadGameState(r.Context(), gameStateID)
	if err != nil {
		h.logger.Error("Failed to load game state", "error", err, "id", gameStateID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load game state")
		return
	}
	if gs == nil {
		writeError(w, h.logger, http.StatusNotFound, "Game state not found")
		return
	}

	req := queue.NewRequest(queue.RequestTypeLoopBoundary, gameStateID)
	if id := strings.TrimSpace(r.Header.Get("Idempotency-Key")); id != "" {
		req.RequestID = id
	}
	if err := h.requests.EnqueueRequest(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue loop boundary", "error", err, "id", gameStateID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue loop boundary")
		return
	}
	if h.publisher != nil {
		if err := h.publisher.PublishRequestQueued(r.Context(), gameStateID, req.RequestID, string(req.Type)); err != nil {
			h.logger.Error("Failed to publish queued event", "error", err)
		}
	}

	writeJSON(w, h.logger, http.StatusAccepted, LoopQueuedResponse{
		RequestID: req.RequestID,
		Type:      string(req.Type),
		Status:    "queued",
	})
}

// LoopsHandler serves engine-wide loop data that does not depend on a session.
type LoopsHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewLoopsHandler(eng *engine.Engine, logger *slog.Logger) *LoopsHandler {
	return &LoopsHandler{engine: eng, logger: logger}
}

type LoopFlagsResponse struct {
	Loop        int      `json:"loop"`
	AlwaysValid bool     `json:"always_valid"`
	Flags       []string `json:"flags"`
}

// ServeHTTP handles GET /v1/loops/{n}/flags
func (h *LoopsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/loops"), "/"), "/")
	if len(parts) != 2 || parts[1] != "flags" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/loops/{n}/flags")
		return
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 1 {
		writeError(w, h.logger, http.StatusBadRequest, "Loop must be a positive integer")
		return
	}

	flags := h.engine.LoopRelevantFlagsFor(n)
	if flags == nil {
		flags = []string{}
	}
	writeJSON(w, h.logger, http.StatusOK, LoopFlagsResponse{
		Loop:        n,
		AlwaysValid: h.engine.IsAlwaysValid(n),
		Flags:       flags,
	})
}
