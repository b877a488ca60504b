package counterparty

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newWSServer runs handle for every received offer; returning nil sends nothing.
func newWSServer(t *testing.T, handle func(req offerRequest) *offerResponse) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req offerRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if resp := handle(req); resp != nil {
				if err := conn.WriteJSON(resp); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestWSSource_Exchange(t *testing.T) {
	url := newWSServer(t, func(req offerRequest) *offerResponse {
		counter := req.BotOffer + float64(req.Round)
		return &offerResponse{NegotiationID: req.NegotiationID, Round: req.Round, CounterOffer: &counter}
	})

	session, err := NewWSDialer(url, nil, quietLogger()).Open(context.Background(), "neg-ws")
	require.NoError(t, err)
	defer session.Close()

	got, err := session.NextCounterOffer(context.Background(), 7500)
	require.NoError(t, err)
	assert.Equal(t, 7501.0, got)

	got, err = session.NextCounterOffer(context.Background(), 7500)
	require.NoError(t, err)
	assert.Equal(t, 7502.0, got)
}

func TestWSSource_ErrorReply(t *testing.T) {
	url := newWSServer(t, func(req offerRequest) *offerResponse {
		return &offerResponse{Round: req.Round, Error: "no deal"}
	})

	session, err := DialWS(context.Background(), url, "neg-ws", nil, quietLogger())
	require.NoError(t, err)
	defer session.Close()

	_, err = session.NextCounterOffer(context.Background(), 7500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no deal")
}

func TestWSSource_ContextTimeout(t *testing.T) {
	url := newWSServer(t, func(offerRequest) *offerResponse { return nil })

	session, err := DialWS(context.Background(), url, "neg-ws", nil, quietLogger())
	require.NoError(t, err)
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = session.NextCounterOffer(ctx, 7500)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWSSource_ConnectionLost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var req offerRequest
		conn.ReadJSON(&req)
		conn.Close()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	session, err := DialWS(context.Background(), url, "neg-ws", nil, quietLogger())
	require.NoError(t, err)
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = session.NextCounterOffer(ctx, 7500)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestWSSource_CloseIsIdempotent(t *testing.T) {
	url := newWSServer(t, func(offerRequest) *offerResponse { return nil })

	session, err := DialWS(context.Background(), url, "neg-ws", nil, quietLogger())
	require.NoError(t, err)

	session.Close()
	assert.NoError(t, session.Close())

	_, err = session.NextCounterOffer(context.Background(), 7500)
	assert.Error(t, err)
}

func TestWSDialer_DialFailure(t *testing.T) {
	_, err := NewWSDialer("ws://127.0.0.1:1", nil, quietLogger()).Open(context.Background(), "neg-ws")
	assert.Error(t, err)
}
