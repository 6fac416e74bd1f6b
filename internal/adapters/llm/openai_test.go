package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

func TestOpenAIProvider_ToolCallsMapToToolUse(t *testing.T) {
	var captured openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"content":"","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"search_properties","arguments":"{\"city\":\"Porto\"}"}},
			{"id":"call_2","type":"function","function":{"name":"search_properties","arguments":"oops"}}
		]}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(testTransport("openai"), srv.URL+"/v1/", "key", "local-model", 512)
	resp, err := p.Complete(context.Background(), domain.CompletionRequest{
		System: "sys",
		Turns:  domain.NewConversation("hostels in Porto").Turns(),
		Tools:  []domain.ToolDescriptor{{Name: "search_properties"}},
	}, domain.CallOptions{MaxAttempts: 1})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "hostels in Porto", captured.Messages[1].Content)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, 512, captured.MaxTokens)

	assert.True(t, resp.WantsTools())
	inv := resp.ToolInvocations()
	require.Len(t, inv, 2)
	assert.JSONEq(t, `{"city":"Porto"}`, string(inv[0].Arguments))
	assert.JSONEq(t, `{}`, string(inv[1].Arguments))
}

func TestOpenAIProvider_ToolCallsWithStopFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"content":"","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"search_properties","arguments":"{\"city\":\"Lima\"}"}}
		]}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(testTransport("openai"), srv.URL+"/v1/", "", "llama3.1", 0)
	resp, err := p.Complete(context.Background(), domain.CompletionRequest{
		Turns: domain.NewConversation("hostels in Lima").Turns(),
	}, domain.CallOptions{MaxAttempts: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.StopReasonToolUse, resp.StopReason)
	assert.True(t, resp.WantsTools())
	inv := resp.ToolInvocations()
	require.Len(t, inv, 1)
	assert.Equal(t, "call_1", inv[0].CorrelationID)
	assert.JSONEq(t, `{"city":"Lima"}`, string(inv[0].Arguments))
}

func TestOpenAIProvider_ToolResultsPrecedeUserText(t *testing.T) {
	var captured openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"content":"[]"}}]}`))
	}))
	defer srv.Close()

	conv := domain.NewConversation("q")
	conv.AppendAssistant([]domain.ContentBlock{{Type: domain.BlockToolUse, ID: "call_1", Name: "search"}})
	conv.AppendUser(
		domain.ToolResultBlock(domain.ToolSucceeded(domain.ToolInvocation{CorrelationID: "call_1"}, json.RawMessage(`{"a":1}`), 1), 0),
		domain.TextBlock("rank"),
	)

	p := NewOpenAIProvider(testTransport("openai"), srv.URL, "", "", 0)
	resp, err := p.Complete(context.Background(), domain.CompletionRequest{Turns: conv.Turns()}, domain.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Text())

	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	require.Len(t, captured.Messages[1].ToolCalls, 1)
	assert.Equal(t, "{}", captured.Messages[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "tool", captured.Messages[2].Role)
	assert.Equal(t, "call_1", captured.Messages[2].ToolCallID)
	assert.Equal(t, `{"a":1}`, captured.Messages[2].Content)
	assert.Equal(t, "user", captured.Messages[3].Role)
	assert.Equal(t, "rank", captured.Messages[3].Content)
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(testTransport("openai"), srv.URL, "", "", 0)
	_, err := p.Complete(context.Background(), domain.CompletionRequest{}, domain.CallOptions{})
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}
