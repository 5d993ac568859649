package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/metrics"
)

// startRequest mirrors the realtime start-debate payload.
type startRequest struct {
	Topic        string               `json:"topic"`
	Participants []debate.Participant `json:"participants"`
	Format       *debate.Format       `json:"format,omitempty"`
}

// stateResponse is the authoritative snapshot with computed remaining
// time, the same shape the channel's debate-state event carries.
type stateResponse struct {
	Session   *debate.Session `json:"session"`
	Remaining int             `json:"remaining"`
}

type speechRequest struct {
	DebateID  string `json:"debateId"`
	SpeakerID string `json:"speakerId"`
	Text      string `json:"text"`
}

type endRequest struct {
	DebateID string `json:"debateId"`
	Winner   string `json:"winner,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type transcriptResponse struct {
	DebateID string           `json:"debateId"`
	Topic    string           `json:"topic"`
	Messages []debate.Message `json:"messages"`
}

func (h *Handler) state(s *debate.Session) *stateResponse {
	if s == nil {
		return nil
	}
	return &stateResponse{Session: s, Remaining: s.Remaining(h.clock())}
}

func (h *Handler) startDebate(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, err, nil)
		return
	}

	s, err := h.reg.Start(r.Context(), req.Topic, req.Participants, req.Format)
	if err != nil {
		h.Error(w, err, nil)
		return
	}
	metrics.SessionsStarted.Inc()
	h.log.Info("debate created", "session", s.ID, "topic", s.Topic)
	h.JSON(w, http.StatusCreated, h.state(s))
}

func (h *Handler) submitSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, err, nil)
		return
	}
	if req.DebateID == "" {
		h.Error(w, errors.NewProtocolError(errors.CodeInvalidPayload, "debateId is required"), nil)
		return
	}

	s, err := h.reg.SubmitSpeech(r.Context(), req.DebateID, req.SpeakerID, req.Text)
	if err != nil {
		h.Error(w, err, h.state(s))
		return
	}
	h.JSON(w, http.StatusOK, h.state(s))
}

func (h *Handler) endDebate(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, err, nil)
		return
	}
	if req.DebateID == "" {
		h.Error(w, errors.NewProtocolError(errors.CodeInvalidPayload, "debateId is required"), nil)
		return
	}
	winner := debate.Team(req.Winner)
	if winner != "" && winner != debate.TeamPro && winner != debate.TeamCon {
		h.Error(w, errors.NewProtocolError(errors.CodeInvalidPayload, "winner must be PRO or CON"), nil)
		return
	}

	s, err := h.reg.End(r.Context(), req.DebateID, winner, req.Reason)
	if err != nil {
		h.Error(w, err, h.state(s))
		return
	}
	h.log.Info("debate ended",
		"session", s.ID, "winner", string(s.Winner), "reason", s.EndReason)
	h.JSON(w, http.StatusOK, h.state(s))
}

func (h *Handler) getDebate(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, err, nil)
		return
	}
	h.JSON(w, http.StatusOK, h.state(s))
}

func (h *Handler) getTranscript(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, err, nil)
		return
	}
	messages := s.Transcript
	if messages == nil {
		messages = []debate.Message{}
	}
	h.JSON(w, http.StatusOK, transcriptResponse{
		DebateID: s.ID,
		Topic:    s.Topic,
		Messages: messages,
	})
}
