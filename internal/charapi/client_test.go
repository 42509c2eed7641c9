package charapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3cpo-dev/charcheck/pkg/api"
)

// mustEncode encodes v as JSON and writes it to w.
func mustEncode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("failed to encode response: " + err.Error())
	}
}

func TestCharacters_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/characters", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		mustEncode(w, map[string]any{
			"characters": map[string]any{
				"pilot": map[string]any{"name": "Alex", "role": "Pilot", "age": 38},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Characters(context.Background())

	require.NoError(t, err)
	require.Len(t, resp.Characters, 1)
	assert.Equal(t, "Alex", resp.Characters["pilot"].Name)
	assert.Equal(t, "Pilot", resp.Characters["pilot"].Role)
}

func TestChat_SendsPayloadAndHeaders(t *testing.T) {
	var got api.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/characters/power-operator", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		mustEncode(w, api.ChatResponse{Response: "hello", ThreadID: "t1", Status: "success"})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithToken("secret"))
	resp, err := client.Chat(context.Background(), "power-operator", &api.ChatRequest{
		Messages:    []api.ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens:   500,
		Temperature: 0.7,
		ThreadID:    "t0",
	})

	require.NoError(t, err)
	assert.Equal(t, "t1", resp.ThreadID)
	assert.Equal(t, "hello", resp.Response)
	assert.Equal(t, 500, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	assert.Equal(t, "t0", got.ThreadID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestChat_OmitsEmptyThreadID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, ok := raw["thread_id"]
		assert.False(t, ok, "thread_id should be omitted on the first message")
		mustEncode(w, api.ChatResponse{ThreadID: "t1"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), "pilot", &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
}

func TestChat_ServerErrorWithJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		mustEncode(w, map[string]string{"error": "model unavailable"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Chat(context.Background(), "pilot", &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	})

	require.Error(t, err)
	assert.Nil(t, resp)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeHTTPStatus, apiErr.Code)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "model unavailable", apiErr.Message)
	assert.Contains(t, apiErr.Body, "model unavailable")
	assert.Equal(t, 500, StatusCode(err))
}

func TestChat_ServerErrorWithRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), "pilot", &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	})

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream exploded", apiErr.Message)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestChat_Validation(t *testing.T) {
	client := NewClient("http://localhost:1")

	_, err := client.Chat(context.Background(), "", &api.ChatRequest{Messages: []api.ChatMessage{{Role: "user"}}})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeBadRequest, apiErr.Code)

	_, err = client.Chat(context.Background(), "pilot", nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeBadRequest, apiErr.Code)
}

func TestConversation_QueryAndDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/conversation", r.URL.Path)
		assert.Equal(t, "pilot_1_abc", r.URL.Query().Get("thread_id"))
		mustEncode(w, map[string]any{
			"thread_id": "pilot_1_abc",
			"history":   []any{map[string]any{"role": "user"}, "free-form entry"},
			"status":    "success",
		})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Conversation(context.Background(), "pilot_1_abc")

	require.NoError(t, err)
	assert.Equal(t, "pilot_1_abc", resp.ThreadID)
	assert.Len(t, resp.History, 2)
}

func TestConversation_RequiresThreadID(t *testing.T) {
	_, err := NewClient("http://localhost:1").Conversation(context.Background(), "")
	require.Error(t, err)
}

func TestHealth_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		mustEncode(w, api.HealthResponse{Status: "healthy", Model: "gemini", Memory: "enabled"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, api.StatusHealthy, resp.Status)
	assert.Equal(t, "enabled", resp.Memory)
}

func TestDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Characters(context.Background())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeDecode, apiErr.Code)
	assert.Equal(t, http.StatusOK, apiErr.Status)
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).Characters(context.Background())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeTransport, apiErr.Code)
	assert.Equal(t, 0, apiErr.Status)
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL).Characters(ctx)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
}

func TestBasePathIsPreserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/staging/api/characters", r.URL.Path)
		mustEncode(w, map[string]any{"characters": map[string]any{}})
	}))
	defer server.Close()

	_, err := NewClient(server.URL + "/staging/").Characters(context.Background())
	require.NoError(t, err)
}

func TestInvalidBaseURL(t *testing.T) {
	_, err := NewClient("localhost:3000").Characters(context.Background())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeInvalidURL, apiErr.Code)
}
