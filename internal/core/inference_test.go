package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeReply(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain text", "hi", "hi"},
		{"json string", `"hola"`, "hola"},
		{"text field", `{"text":"desde text"}`, "desde text"},
		{"answer field", `{"answer":"hi"}`, "hi"},
		{"response field", `{"response":"desde response"}`, "desde response"},
		{"text wins over answer", `{"text":"a","answer":"b"}`, "a"},
		{"unknown object shape", `{"foo":"bar"}`, unexpectedResponseMessage},
		{"empty body", "", unexpectedResponseMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, normalizeReply([]byte(tt.body)))
		})
	}
}

func TestAsk_NotConfigured(t *testing.T) {
	client := NewFlowiseClient()
	_, err := client.Ask(context.Background(), "", "", "hola", nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestAsk_SendsQuestionHistoryAndBearer(t *testing.T) {
	var got flowiseRequest
	var gotAuth string
	var decodeErr error

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		decodeErr = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"answer":"respuesta"}`))
	}))
	defer srv.Close()

	history := make([]Turn, 0, 12)
	for i := 0; i < 12; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, Turn{Role: role, Content: "turno"})
	}

	client := NewFlowiseClient()
	reply, err := client.Ask(context.Background(), srv.URL, "secreta", "¿Qué es una licitación?", history)
	require.NoError(t, err)
	require.Equal(t, "respuesta", reply)

	require.NoError(t, decodeErr)
	require.Equal(t, "Bearer secreta", gotAuth)
	require.Equal(t, "¿Qué es una licitación?", got.Question)
	// Only the last 10 turns travel upstream.
	require.Len(t, got.History, 10)
}

func TestAsk_NoBearerWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewFlowiseClient()
	_, err := client.Ask(context.Background(), srv.URL, "", "hola", nil)
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestAsk_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewFlowiseClient()
	_, err := client.Ask(context.Background(), srv.URL, "", "hola", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
