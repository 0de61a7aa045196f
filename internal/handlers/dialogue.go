package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/loop-engine/pkg/dialogue"
	"github.com/jwebster45206/loop-engine/pkg/engine"
)

type EntriesResponse struct {
	Loop    int               `json:"loop"`
	Entries []*dialogue.Entry `json:"entries"`
}

// EntryResponse carries a single entry. Entry is null when the collection
// has nothing to narrate and the client should go straight to choices.
type EntryResponse struct {
	Loop     int             `json:"loop"`
	Entry    *dialogue.Entry `json:"entry"`
	NewFlags []string        `json:"new_flags,omitempty"`
}

type CharacterResponse struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Entries []*dialogue.Entry `json:"entries"`
}

// ChoiceView is one on-screen choice. Slot is what the client sends back.
type ChoiceView struct {
	Slot    int    `json:"slot"`
	Key     string `json:"key"`
	EntryID string `json:"entry_id"`
	Prompt  string `json:"prompt"`
}

type ChoicesResponse struct {
	Shown   []ChoiceView `json:"shown"`
	Waiting int          `json:"waiting"`
}

func newChoicesResponse(v engine.ChoiceView) ChoicesResponse {
	out := ChoicesResponse{Shown: make([]ChoiceView, 0, len(v.Shown)), Waiting: v.Waiting}
	for i, ref := range v.Shown {
		out.Shown = append(out.Shown, ChoiceView{
			Slot:    i,
			Key:     ref.Key(),
			EntryID: ref.Entry.ID,
			Prompt:  ref.Choice.PromptText,
		})
	}
	return out
}

type SelectChoiceRequest struct {
	Slot *int `json:"slot"`
}

type SelectChoiceResponse struct {
	EntryID   string          `json:"entry_id"`
	Key       string          `json:"key"`
	Prompt    string          `json:"prompt"`
	Response  string          `json:"response,omitempty"`
	HasAnswer bool            `json:"has_answer"`
	NewFlags  []string        `json:"new_flags,omitempty"`
	Next      ChoicesResponse `json:"next"`
}

type FlagsResponse struct {
	Loop          int      `json:"loop"`
	Flags         []string `json:"flags"`
	FoundThisLoop []string `json:"found_this_loop"`
}

type FlagRequest struct {
	Flag string `json:"flag"`
}

type FlagResponse struct {
	Flag  string `json:"flag"`
	Set   bool   `json:"set"`
	Added bool   `json:"added,omitempty"`
}

func (h *GameStateHandler) handleSelect(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID, collection string) {
	var req SelectChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Slot == nil {
		writeError(w, h.logger, http.StatusBadRequest, "slot field is required")
		return
	}

	h.update(w, r, gameStateID, func(s *engine.Session) (any, error) {
		out, err := s.SelectChoice(collection, *req.Slot)
		if err != nil {
			return nil, err
		}
		next, err := s.OfferedChoices(collection)
		if err != nil {
			return nil, err
		}
		return SelectChoiceResponse{
			EntryID:   out.Ref.Entry.ID,
			Key:       out.Ref.Key(),
			Prompt:    out.Ref.Choice.PromptText,
			Response:  out.Response,
			HasAnswer: out.HasAnswer,
			NewFlags:  out.NewFlags,
			Next:      newChoicesResponse(next),
		}, nil
	})
}

func (h *GameStateHandler) handleFlags(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) {
	h.view(w, r, gameStateID, func(s *engine.Session) (any, error) {
		if flag := strings.TrimSpace(r.URL.Query().Get("flag")); flag != "" {
			return FlagResponse{Flag: flag, Set: s.HasFlag(flag)}, nil
		}
		return FlagsResponse{Loop: s.Loop(), Flags: s.Flags(), FoundThisLoop: s.FoundThisLoop()}, nil
	})
}

func (h *GameStateHandler) handleAddFlag(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) {
	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	flag := strings.TrimSpace(req.Flag)
	if flag == "" {
		writeError(w, h.logger, http.StatusBadRequest, "flag field is required")
		return
	}

	h.update(w, r, gameStateID, func(s *engine.Session) (any, error) {
		added := s.AddFlag(flag)
		return FlagResponse{Flag: flag, Set: true, Added: added}, nil
	})
}
