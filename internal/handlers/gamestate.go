package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/loop-engine/pkg/dialogue"
	"github.com/jwebster45206/loop-engine/pkg/engine"
	"github.com/jwebster45206/loop-engine/pkg/queue"
	"github.com/jwebster45206/loop-engine/pkg/storage"
)

// RequestQueue accepts loop events for the workers.
type RequestQueue interface {
	EnqueueRequest(ctx context.Context, req *queue.Request) error
}

// EventPublisher announces queued requests to SSE listeners.
type EventPublisher interface {
	PublishRequestQueued(ctx context.Context, gameID uuid.UUID, requestID string, requestType string) error
}

// GameLocker serializes writers of one stored game. The loop workers take
// the same lock.
type GameLocker interface {
	LockGame(ctx context.Context, gameStateID uuid.UUID, owner string) (bool, error)
	UnlockGame(ctx context.Context, gameStateID uuid.UUID, owner string) error
}

const (
	lockAttempts = 10
	lockBackoff  = 50 * time.Millisecond
)

type GameStateHandler struct {
	engine    *engine.Engine
	storage   storage.Storage
	requests  RequestQueue
	publisher EventPublisher
	locker    GameLocker
	logger    *slog.Logger
}

func NewGameStateHandler(eng *engine.Engine, storage storage.Storage, logger *slog.Logger) *GameStateHandler {
	return &GameStateHandler{
		engine:  eng,
		storage: storage,
		logger:  logger,
	}
}

// WithQueue enables the asynchronous loop boundary route. The publisher may be nil.
func (h *GameStateHandler) WithQueue(requests RequestQueue, publisher EventPublisher) *GameStateHandler {
	h.requests = requests
	h.publisher = publisher
	return h
}

// WithLocker makes every mutating request hold the game's lock from load to save.
func (h *GameStateHandler) WithLocker(locker GameLocker) *GameStateHandler {
	h.locker = locker
	return h
}

// CreateGameStateRequest defines the request body for creating a new game state
type CreateGameStateRequest struct {
	PlayerName string `json:"player_name,omitempty"` // Optional: defaults to the manifest's player name
}

// ServeHTTP handles HTTP requests for game state operations
// Routes:
// POST   /v1/gamestate                              - Create new game state
// GET    /v1/gamestate/{id}                         - Read game state by ID
// DELETE /v1/gamestate/{id}                         - Delete game state by ID
// GET    /v1/gamestate/{id}/entries/{collection}    - Available entries
// GET    /v1/gamestate/{id}/best/{collection}       - Best entry
// POST   /v1/gamestate/{id}/present/{collection}    - Show best entry, grant its flags
// GET    /v1/gamestate/{id}/choices/{collection}    - Offered choices
// POST   /v1/gamestate/{id}/choices/{collection}    - Select a choice by slot
// GET    /v1/gamestate/{id}/npcs/{npc}              - Available dialogue of an NPC
// GET    /v1/gamestate/{id}/items/{item}            - Available dialogue of an item
// GET    /v1/gamestate/{id}/flags                   - List flags, or ?flag= to test one
// POST   /v1/gamestate/{id}/flags                   - Add a flag
// POST   /v1/gamestate/{id}/loop/advance            - Loop boundary, applied now
// POST   /v1/gamestate/{id}/loop/boundary           - Loop boundary, queued for a worker
// POST   /v1/gamestate/{id}/loop/reset              - Back to loop 1
// GET    /v1/gamestate/{id}/loop/dialogue           - Loop start dialogue
func (h *GameStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/gamestate"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	gameStateID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid game state ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid game state ID format")
		return
	}
	rest := parts[1:]

	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, gameStateID)
		case http.MethodDelete:
			h.handleDelete(w, r, gameStateID)
		default:
			h.methodNotAllowed(w, r, "GET, DELETE")
		}

	case len(rest) == 2 && rest[0] == "entries":
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.view(w, r, gameStateID, func(s *engine.Session) (any, error) {
			entries, err := s.AvailableEntries(rest[1])
			return EntriesResponse{Loop: s.Loop(), Entries: entries}, err
		})

	case len(rest) == 2 && rest[0] == "best":
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.view(w, r, gameStateID, func(s *engine.Session) (any, error) {
			e, err := s.BestEntry(rest[1])
			return EntryResponse{Loop: s.Loop(), Entry: e}, err
		})

	case len(rest) == 2 && rest[0] == "present":
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.update(w, r, gameStateID, func(s *engine.Session) (any, error) {
			e, newFlags, err := s.PresentEntry(rest[1])
			return EntryResponse{Loop: s.Loop(), Entry: e, NewFlags: newFlags}, err
		})

	case len(rest) == 2 && rest[0] == "choices":
		switch r.Method {
		case http.MethodGet:
			h.view(w, r, gameStateID, func(s *engine.Session) (any, error) {
				v, err := s.OfferedChoices(rest[1])
				return newChoicesResponse(v), err
			})
		case http.MethodPost:
			h.handleSelect(w, r, gameStateID, rest[1])
		default:
			h.methodNotAllowed(w, r, "GET, POST")
		}

	case len(rest) == 2 && (rest[0] == "npcs" || rest[0] == "items"):
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.view(w, r, gameStateID, func(s *engine.Session) (any, error) {
			if rest[0] == "npcs" {
				entries, err := s.DialoguesForNPC(rest[1])
				return CharacterResponse{ID: rest[1], Name: s.NPCName(rest[1]), Entries: entries}, err
			}
			entries, err := s.DialoguesForItem(rest[1])
			return CharacterResponse{ID: rest[1], Name: engine.DisplayName(rest[1]), Entries: entries}, err
		})

	case len(rest) == 1 && rest[0] == "flags":
		switch r.Method {
		case http.MethodGet:
			h.handleFlags(w, r, gameStateID)
		case http.MethodPost:
			h.handleAddFlag(w, r, gameStateID)
		default:
			h.methodNotAllowed(w, r, "GET, POST")
		}

	case len(rest) == 2 && rest[0] == "loop":
		h.handleLoop(w, r, gameStateID, rest[1])

	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown game state route")
	}
}

func (h *GameStateHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed for game state endpoint", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allowed)
}

func (h *GameStateHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Creating new game state")

	// An empty body is a valid request for a default player.
	var req CreateGameStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	gs := h.engine.NewSession(strings.TrimSpace(req.PlayerName)).State()
	if err := h.storage.SaveGameState(r.Context(), gs.ID, gs); err != nil {
		h.logger.Error("Failed to save new game state", "error", err, "id", gs.ID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create game state")
		return
	}

	h.logger.Debug("Game state created successfully", "id", gs.ID.String())
	writeJSON(w, h.logger, http.StatusCreated, gs)
}

func (h *GameStateHandler) handleRead(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) {
	s, ok := h.load(w, r, gameStateID)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.State())
}

func (h *GameStateHandler) handleDelete(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) {
	if err := h.storage.DeleteGameState(r.Context(), gameStateID); err != nil {
		h.logger.Error("Failed to delete game state", "error", err, "id", gameStateID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete game state")
		return
	}
	h.logger.Debug("Game state deleted", "id", gameStateID.String())
	w.WriteHeader(http.StatusNoContent)
}

// load restores the stored session, writing the error response when it cannot.
func (h *GameStateHandler) load(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) (*engine.Session, bool) {
	gs, err := h.storage.LoadGameState(r.Context(), gameStateID)
	if err != nil {
		h.logger.Error("Failed to load game state", "error", err, "id", gameStateID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load game state")
		return nil, false
	}
	if gs == nil {
		writeError(w, h.logger, http.StatusNotFound, "Game state not found")
		return nil, false
	}
	s, err := h.engine.Restore(gs)
	if err != nil {
		h.logger.Error("Stored game state is invalid", "error", err, "id", gameStateID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Stored game state is invalid")
		return nil, false
	}
	return s, true
}

func (h *GameStateHandler) save(w http.ResponseWriter, r *http.Request, s *engine.Session) bool {
	if err := h.storage.SaveGameState(r.Context(), s.ID(), s.State()); err != nil {
		h.logger.Error("Failed to save game state", "error", err, "id", s.ID().String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save game state")
		return false
	}
	return true
}

// view runs a read-only operation against the stored session.
func (h *GameStateHandler) view(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID, op func(*engine.Session) (any, error)) {
	s, ok := h.load(w, r, gameStateID)
	if !ok {
		return
	}
	out, err := op(s)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

// update runs an operation and saves the session when it succeeds.
// With a locker, the game's lock is held across load, apply and save; a game
// that stays locked answers 409.
func (h *GameStateHandler) update(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID, op func(*engine.Session) (any, error)) {
	if h.locker != nil {
		owner := "api-" + uuid.NewString()
		locked, err := h.lockGame(r.Context(), gameStateID, owner)
		if err != nil {
			h.logger.Error("Failed to lock game state", "error", err, "id", gameStateID.String())
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to lock game state")
			return
		}
		if !locked {
			writeError(w, h.logger, http.StatusConflict, "Game state is busy, try again")
			return
		}
		defer h.unlockGame(gameStateID, owner)
	}

	s, ok := h.load(w, r, gameStateID)
	if !ok {
		return
	}
	out, err := op(s)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	if !h.save(w, r, s) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

// lockGame retries for a short while, since worker holds are brief.
func (h *GameStateHandler) lockGame(ctx context.Context, gameStateID uuid.UUID, owner string) (bool, error) {
	for attempt := range lockAttempts {
		locked, err := h.locker.LockGame(ctx, gameStateID, owner)
		if err != nil || locked {
			return locked, err
		}
		if attempt == lockAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return false, nil
}

func (h *GameStateHandler) unlockGame(gameStateID uuid.UUID, owner string) {
	// The request context may be gone once the response is written.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.locker.UnlockGame(ctx, gameStateID, owner); err != nil {
		h.logger.Error("Failed to unlock game state", "error", err, "id", gameStateID.String())
	}
}

func (h *GameStateHandler) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dialogue.ErrMissingCollection):
		writeError(w, h.logger, http.StatusNotFound, err.Error())
	case errors.Is(err, dialogue.ErrInvalidChoiceSelection):
		writeError(w, h.logger, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Game state operation failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Operation failed")
	}
}
