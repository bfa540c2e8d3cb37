package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiiskristo/howdoyoufindme/internal/llm"
)

func TestCompleteRequestsJSONFormat(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/chat", r.URL.Path)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "json", body["format"])
			require.Equal(t, false, body["stream"])
			require.Equal(t, float64(256), body["options"].(map[string]interface{})["num_predict"])

			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"message":{"role":"assistant","content":"{}"},"prompt_eval_count":3,"eval_count":4}`)),
			}, nil
		}),
	}

	resp, err := p.Complete(context.Background(), llm.Request{
		Model:     "llama3",
		Prompt:    "ping",
		MaxTokens: 256,
		JSON:      true,
	})
	require.NoError(t, err)
	require.Equal(t, "{}", resp.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 7, resp.Usage.Total())
}

func TestCompleteReportsStatus(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`model "llama3" not found`)),
			}, nil
		}),
	}

	_, err := p.Complete(context.Background(), llm.Request{Model: "llama3"})
	require.ErrorContains(t, err, "ollama: status 404")
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
