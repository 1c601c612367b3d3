package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNotConfigured is returned before any HTTP call when no endpoint URL has
// been configured by the admin.
var ErrNotConfigured = errors.New("flowise api url is not configured")

const (
	// maxHistoryTurns bounds the conversational context sent upstream.
	maxHistoryTurns = 10

	unexpectedResponseMessage = "Lo siento, recibí una respuesta inesperada del sistema. Por favor, intenta nuevamente."
)

// Turn is one prior transcript entry sent upstream as context.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type flowiseRequest struct {
	Question string `json:"question"`
	History  []Turn `json:"history"`
}

// FlowiseClient talks to the Flowise prediction endpoint configured by the
// admin. The reply schema is not contractually fixed, so decoding tries an
// ordered list of known shapes instead of a single struct.
type FlowiseClient struct {
	httpClient *http.Client
}

func NewFlowiseClient() *FlowiseClient {
	return &FlowiseClient{httpClient: &http.Client{}}
}

// Ask forwards the question plus at most the last 10 prior turns and returns
// the normalized reply text.
func (c *FlowiseClient) Ask(ctx context.Context, apiURL, apiKey, question string, history []Turn) (string, error) {
	if apiURL == "" {
		return "", ErrNotConfigured
	}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	payload, err := json.Marshal(flowiseRequest{Question: question, History: history})
	if err != nil {
		return "", fmt.Errorf("error encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("api returned status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return normalizeReply(body), nil
}

// normalizeReply extracts the answer text from whichever shape the endpoint
// produced: a JSON string, an object carrying text/answer/response, or a raw
// text body. Anything else yields a fixed fallback message.
func normalizeReply(body []byte) string {
	var asString string
	if err := json.Unmarshal(body, &asString); err == nil {
		return asString
	}

	var shaped struct {
		Text     string `json:"text"`
		Answer   string `json:"answer"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		switch {
		case shaped.Text != "":
			return shaped.Text
		case shaped.Answer != "":
			return shaped.Answer
		case shaped.Response != "":
			return shaped.Response
		}
		return unexpectedResponseMessage
	}

	// Not JSON at all: plain text body.
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return unexpectedResponseMessage
}
