package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"armada.cl/asesor-compras/internal/store"
)

func newTestChatService(t *testing.T) (*ChatService, *store.Store, *SettingsService) {
	t.Helper()
	st := newTestSettingsStore(t)
	settings := NewSettingsService(st)
	validator := NewUserValidator(st, settings)
	svc := NewChatService(st, settings, validator, NewFlowiseClient())
	return svc, st, settings
}

func TestCreateSession_SeedsGreetingOnce(t *testing.T) {
	svc, _, _ := newTestChatService(t)

	sess := svc.CreateSession()
	msgs := sess.Messages()
	require.Len(t, msgs, 1)
	require.False(t, msgs[0].IsUser)
	require.Equal(t, defaultSettings().Greeting, msgs[0].Content)

	require.NotNil(t, svc.Session(sess.ID))
	require.Nil(t, svc.Session("session_0_nope"))
}

func TestSubmitMessage_BlankInputIsNoOp(t *testing.T) {
	svc, _, _ := newTestChatService(t)
	sess := svc.CreateSession()
	before := len(sess.Messages())

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := svc.SubmitMessage(context.Background(), sess, input)
		require.ErrorIs(t, err, ErrEmptyMessage)
	}

	require.Len(t, sess.Messages(), before)
	require.False(t, sess.Sending())
}

func TestSubmitMessage_SuccessAppendsAndPersists(t *testing.T) {
	svc, st, settings := newTestChatService(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"Una licitación es un proceso de compra."}`))
	}))
	defer srv.Close()
	require.NoError(t, settings.Update(ctx, KeyFlowiseAPIURL, srv.URL))

	sess := svc.CreateSession()
	msg, err := svc.SubmitMessage(ctx, sess, "¿Qué es una licitación?")
	require.NoError(t, err)
	require.False(t, msg.IsUser)
	require.Equal(t, "Una licitación es un proceso de compra.", msg.Content)

	msgs := sess.Messages()
	require.Len(t, msgs, 3) // greeting, user, assistant
	require.True(t, msgs[1].IsUser)
	require.False(t, sess.Sending())

	// The exchange is persisted off the request path.
	require.Eventually(t, func() bool {
		rows, err := st.ChatHistory(ctx, sess.ID)
		return err == nil && len(rows) == 2
	}, 2*time.Second, 10*time.Millisecond)

	rows, err := st.ChatHistory(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, store.MessageTypeUser, rows[0].MessageType)
	require.Equal(t, "¿Qué es una licitación?", rows[0].Message)
	require.Equal(t, store.MessageTypeAssistant, rows[1].MessageType)
}

func TestSubmitMessage_NotConfiguredWording(t *testing.T) {
	svc, _, _ := newTestChatService(t)
	sess := svc.CreateSession()

	msg, err := svc.SubmitMessage(context.Background(), sess, "¿Qué es una licitación?")
	require.NoError(t, err)
	require.Equal(t, notConfiguredMessage, msg.Content)
	require.False(t, sess.Sending())
	require.Len(t, sess.Messages(), 3)
}

func TestSubmitMessage_UpstreamFailureWording(t *testing.T) {
	svc, _, settings := newTestChatService(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	require.NoError(t, settings.Update(ctx, KeyFlowiseAPIURL, srv.URL))

	sess := svc.CreateSession()
	msg, err := svc.SubmitMessage(ctx, sess, "hola")
	require.NoError(t, err)
	require.Equal(t, temporaryErrorMessage, msg.Content)
	require.False(t, sess.Sending())
}

func TestSubmitMessage_RejectsParallelSend(t *testing.T) {
	svc, _, settings := newTestChatService(t)
	ctx := context.Background()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`"listo"`))
	}))
	defer srv.Close()
	require.NoError(t, settings.Update(ctx, KeyFlowiseAPIURL, srv.URL))

	sess := svc.CreateSession()

	done := make(chan error, 1)
	go func() {
		_, err := svc.SubmitMessage(ctx, sess, "primera")
		done <- err
	}()

	require.Eventually(t, sess.Sending, time.Second, 5*time.Millisecond)

	_, err := svc.SubmitMessage(ctx, sess, "segunda")
	require.ErrorIs(t, err, ErrSessionBusy)

	close(release)
	require.NoError(t, <-done)
	require.False(t, sess.Sending())
}

func TestAuthGate_LoginFlow(t *testing.T) {
	svc, st, settings := newTestChatService(t)
	ctx := context.Background()

	require.NoError(t, settings.Update(ctx, KeyAuthEnabled, "true"))
	require.NoError(t, settings.Update(ctx, KeyUserPassword, "clave-real"))

	sess := svc.CreateSession()
	require.True(t, svc.Gated(sess))
	require.Empty(t, sess.Messages()) // no greeting before the gate clears

	_, err := svc.Login(ctx, sess, "12345678-9", "clave-mala")
	require.ErrorIs(t, err, ErrWrongPassword)
	require.True(t, svc.Gated(sess))

	user, err := svc.Login(ctx, sess, "12345678-9", "clave-real")
	require.NoError(t, err)
	require.Equal(t, "12345678-9", user.Rut)
	require.False(t, svc.Gated(sess))

	msgs := sess.Messages()
	require.Len(t, msgs, 1) // greeting appears exactly once
	require.Equal(t, defaultSettings().Greeting, msgs[0].Content)

	row, err := st.GetUserByRut(ctx, "12345678-9")
	require.NoError(t, err)
	require.NotNil(t, row)
}

func TestAuthGate_RegatesLiveSessionsImmediately(t *testing.T) {
	svc, _, settings := newTestChatService(t)
	ctx := context.Background()

	sess := svc.CreateSession()
	require.False(t, svc.Gated(sess))

	require.NoError(t, settings.Update(ctx, KeyAuthEnabled, "true"))
	require.True(t, svc.Gated(sess))
}

func TestSubmitMessage_NoHTTPCallWhenUnconfigured(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	// The server exists but was never configured as the endpoint.
	svc, _, _ := newTestChatService(t)
	sess := svc.CreateSession()

	_, err := svc.SubmitMessage(context.Background(), sess, "hola")
	require.NoError(t, err)
	require.Zero(t, calls.Load())
}
