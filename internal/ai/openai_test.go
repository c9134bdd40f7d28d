package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatBody(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestProvider(t *testing.T, url string) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	return p
}

func TestGenerateJSONStripsFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, chatBody("```json\n{\"topics\": []}\n```"))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	raw, err := p.GenerateJSON(context.Background(), PromptTopicExtraction, "sys", "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"topics": []}`, string(raw))
}

func TestGenerateJSONRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chatBody(`{"ok": true}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	raw, err := p.GenerateJSON(context.Background(), PromptSlideContent, "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.JSONEq(t, `{"ok": true}`, string(raw))
}

func TestGenerateJSONDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "bad prompt"}}`)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.GenerateJSON(context.Background(), PromptAssessmentItem, "sys", "user")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGenerateJSONAppliesOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 0.1, req.Temperature, 1e-9)
		fmt.Fprint(w, chatBody(`{}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.GenerateJSON(context.Background(), PromptSlideContent, "sys", "user", WithTemperature(0.1))
	require.NoError(t, err)
}

func TestNewOpenAIProviderRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	assert.Error(t, err)
}
