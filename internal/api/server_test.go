package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/IcensRAGHomework/rag1-Kllin0219/config"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/agent"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/jsonout"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExercises struct {
	store  *agent.SessionStore
	result string
	err    error
	image  llm.Image
}

func (f *fakeExercises) GenerateHW01(ctx context.Context, q string) (string, error) {
	if q == "" {
		return "", agent.ErrEmptyInput
	}
	return f.result, f.err
}

func (f *fakeExercises) GenerateHW02(ctx context.Context, q string) (string, error) {
	return f.result, f.err
}

func (f *fakeExercises) GenerateHW03(ctx context.Context, q2, q3 string) (string, error) {
	return f.result, f.err
}

func (f *fakeExercises) GenerateHW04(ctx context.Context, q string, img llm.Image) (string, error) {
	f.image = img
	return f.result, f.err
}

func (f *fakeExercises) Demo(ctx context.Context, q string) (string, error) {
	return "echo: " + q, f.err
}

func (f *fakeExercises) Chat(ctx context.Context, sessionID, message string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.store.Append(sessionID,
		agent.Message{Role: "user", Content: message},
		agent.Message{Role: "assistant", Content: "reply"},
	)
	return "reply", nil
}

func (f *fakeExercises) ClearSession(id string) bool { return true }

func newTestServer(fake *fakeExercises, cfg *config.Config) http.Handler {
	if fake.store == nil {
		fake.store = agent.NewSessionStore()
	}
	return NewServer(fake, fake.store, zerolog.Nop(), cfg).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(&fakeExercises{}, &config.Config{})
	rec := do(t, h, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHW01Result(t *testing.T) {
	h := newTestServer(&fakeExercises{result: `{"Result":[{"date":"2024-10-10","name":"國慶日"}]}`}, &config.Config{})

	rec := do(t, h, http.MethodPost, "/api/v1/hw01", `{"question":"2024年台灣10月紀念日有哪些?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":{"Result":[{"date":"2024-10-10","name":"國慶日"}]}}`, rec.Body.String())
}

func TestHW01Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
		want   string
	}{
		{"bad body", nil, `{`, http.StatusBadRequest, "invalid request body"},
		{"empty question", nil, `{}`, http.StatusBadRequest, agent.ErrEmptyInput.Error()},
		{"parse token", fmt.Errorf("%w: eof", jsonout.ErrJSONParse), `{"question":"q"}`, http.StatusUnprocessableEntity, "json parse error"},
		{"result token", jsonout.ErrMissingResult, `{"question":"q"}`, http.StatusUnprocessableEntity, "json not contain Result"},
		{"upstream", fmt.Errorf("LLM error: timeout"), `{"question":"q"}`, http.StatusBadGateway, "LLM error: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeExercises{err: tt.err}, &config.Config{})
			rec := do(t, h, http.MethodPost, "/api/v1/hw01", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Error)
		})
	}
}

func TestHW04DecodesImage(t *testing.T) {
	fake := &fakeExercises{result: `{"Result":{"answer":5498}}`}
	h := newTestServer(fake, &config.Config{})

	rec := do(t, h, http.MethodPost, "/api/v1/hw04", `{"question":"q","image_base64":"cG5n","image_media_type":"image/png"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("png"), fake.image.Data)
	assert.Equal(t, "image/png", fake.image.MediaType)

	rec = do(t, h, http.MethodPost, "/api/v1/hw04", `{"question":"q","image_base64":"!!"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatConversationLifecycle(t *testing.T) {
	fake := &fakeExercises{}
	h := newTestServer(fake, &config.Config{})

	rec := do(t, h, http.MethodPost, "/api/v1/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var chat ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	assert.NotEmpty(t, chat.ConversationID)
	assert.Equal(t, "reply", chat.Response)

	rec = do(t, h, http.MethodPost, "/api/v1/chat", fmt.Sprintf(`{"conversation_id":%q,"message":"again"}`, chat.ConversationID))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/chat/"+chat.ConversationID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess agent.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Len(t, sess.Messages, 4)

	rec = do(t, h, http.MethodGet, "/api/v1/chat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, chat.ConversationID, summaries[0].ID)
	assert.Equal(t, 4, summaries[0].Messages)

	rec = do(t, h, http.MethodDelete, "/api/v1/chat/"+chat.ConversationID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/chat/"+chat.ConversationID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/chat", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestChatRequiresMessage(t *testing.T) {
	h := newTestServer(&fakeExercises{}, &config.Config{})
	rec := do(t, h, http.MethodPost, "/api/v1/chat", `{"conversation_id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := &config.Config{APIKeyRequired: true, APIKeys: "secret"}
	h := newTestServer(&fakeExercises{}, cfg)

	rec := do(t, h, http.MethodPost, "/api/v1/demo", `{"question":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/demo", `{"question":"hi"}`, apiKeyHeader, "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"echo: hi"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
