package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/agent"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/jsonout"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/llm"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type QuestionRequest struct {
	Question       string `json:"question"`
	ImageBase64    string `json:"image_base64,omitempty"`
	ImageMediaType string `json:"image_media_type,omitempty"`
}

type HW03Request struct {
	Question2 string `json:"question2"`
	Question3 string `json:"question3"`
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

type ResultResponse struct {
	Result json.RawMessage `json:"result"`
}

type DemoResponse struct {
	Response string `json:"response"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHW01(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.agent.GenerateHW01(r.Context(), req.Question)
	s.writeResult(w, result, err)
}

func (s *Server) handleHW02(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.agent.GenerateHW02(r.Context(), req.Question)
	s.writeResult(w, result, err)
}

func (s *Server) handleHW03(w http.ResponseWriter, r *http.Request) {
	var req HW03Request
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.agent.GenerateHW03(r.Context(), req.Question2, req.Question3)
	s.writeResult(w, result, err)
}

func (s *Server) handleHW04(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !s.decode(w, r, &req) {
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		s.writeError(w, "image_base64 is not valid base64", http.StatusBadRequest)
		return
	}

	result, err := s.agent.GenerateHW04(r.Context(), req.Question, llm.Image{
		MediaType: req.ImageMediaType,
		Data:      data,
	})
	s.writeResult(w, result, err)
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !s.decode(w, r, &req) {
		return
	}
	response, err := s.agent.Demo(r.Context(), req.Question)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	s.writeJSON(w, DemoResponse{Response: response})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Message == "" {
		s.writeError(w, "message is required", http.StatusBadRequest)
		return
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.New().String()
	}

	response, err := s.agent.Chat(r.Context(), convID, req.Message)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}

	s.writeJSON(w, ChatResponse{
		ConversationID: convID,
		Response:       response,
	})
}

type SessionSummary struct {
	ID        string    `json:"id"`
	Messages  int       `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.store.List()
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:        sess.ID,
			Messages:  len(sess.Messages),
			UpdatedAt: sess.UpdatedAt,
		})
	}
	s.writeJSON(w, summaries)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Get(chi.URLParam(r, "id"))
	if sess == nil {
		s.writeError(w, "conversation not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(chi.URLParam(r, "id")) {
		s.writeError(w, "conversation not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeResult(w http.ResponseWriter, result string, err error) {
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	s.writeJSON(w, ResultResponse{Result: json.RawMessage(result)})
}

// writeAgentError maps agent failures to statuses; the two JSON tokens are
// returned verbatim as the error text.
func (s *Server) writeAgentError(w http.ResponseWriter, err error) {
	if token, ok := jsonout.Token(err); ok {
		s.writeError(w, token, http.StatusUnprocessableEntity)
		return
	}

	switch {
	case errors.Is(err, agent.ErrEmptyInput), errors.Is(err, agent.ErrNoImage):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error().Err(err).Msg("agent error")
		s.writeError(w, err.Error(), http.StatusBadGateway)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
