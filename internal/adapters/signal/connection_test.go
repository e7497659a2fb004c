package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/livesignal/internal/loop"
	"github.com/dkeye/livesignal/internal/protocol"
)

const testToken = "eyJhbGciOiJIUzI1NiJ9.e30/sig+=="

// fakeServer imitates the auth, targets, control and event endpoints.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	tokenStatus int
	tokenBody   string
	targetsBody string

	ackHello chan struct{}
	hello    chan map[string]any
	control  chan map[string]any
	filter   chan map[string]any
	events   chan map[string]any

	controlConn chan *websocket.Conn
	eventsConn  chan *websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		t:           t,
		tokenStatus: http.StatusOK,
		tokenBody:   `{"apiVersion":"1.0","data":{"token":"` + testToken + `","expiresAt":"2030-01-01T00:00:00Z"}}`,
		targetsBody: `{"data":{"targets":[]}}`,
		ackHello:    make(chan struct{}),
		hello:       make(chan map[string]any, 1),
		control:     make(chan map[string]any, 32),
		filter:      make(chan map[string]any, 1),
		events:      make(chan map[string]any, 32),
		controlConn: make(chan *websocket.Conn, 1),
		eventsConn:  make(chan *websocket.Conn, 1),
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc(pathAuth, func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "root" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc(pathTargets, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(f.targetsBody))
	})
	mux.HandleFunc(pathControl, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("authorization") != testToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		hello := readJSON(ws)
		if hello == nil {
			return
		}
		f.hello <- hello
		<-f.ackHello
		f.write(ws, `{"type":"hello","correlationId":"`+hello["correlationId"].(string)+`"}`)
		f.controlConn <- ws
		for {
			m := readJSON(ws)
			if m == nil {
				return
			}
			f.control <- m
		}
	})
	mux.HandleFunc(pathEvents, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sources") != "events" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		f.filter <- readJSON(ws)
		f.eventsConn <- ws
		for {
			m := readJSON(ws)
			if m == nil {
				return
			}
			f.events <- m
		}
	})

	f.srv = httptest.NewTLSServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) addr() string { return strings.TrimPrefix(f.srv.URL, "https://") }

// write is used by the handler for the hello ack only. The conn is handed
// to the test afterwards, which owns every later write.
func (f *fakeServer) write(ws *websocket.Conn, s string) {
	_ = ws.WriteMessage(websocket.TextMessage, []byte(s))
}

func readJSON(ws *websocket.Conn) map[string]any {
	_, b, err := ws.ReadMessage()
	if err != nil {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil {
		return nil
	}
	return m
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "..", "protocol", "testdata", "incoming", name+".json"))
	require.NoError(t, err)
	return string(b)
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func startLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

func newConn(t *testing.T, f *fakeServer, l *loop.Loop) *Connection {
	t.Helper()
	c := New(l, Config{Server: f.addr(), User: "root", Pass: "secret"})
	t.Cleanup(c.Close)
	return c
}

func answer(n int) protocol.SDPAnswerRequest {
	return protocol.SDPAnswerRequest{SessionID: "S1", TargetID: "T1", SDP: "v=" + string(rune('0'+n))}
}

func sdpOf(m map[string]any) string {
	return m["data"].(map[string]any)["params"].(map[string]any)["sdp"].(string)
}

func TestConnectionQueuesUntilHello(t *testing.T) {
	f := newFakeServer(t)
	c := newConn(t, f, startLoop(t))

	require.NoError(t, c.Send(answer(1)))
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Send(answer(2)))

	hello := recv(t, f.hello)
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, "noid", hello["id"])
	assert.Equal(t, testToken, hello["accessToken"])
	assert.NotEmpty(t, hello["correlationId"])

	filter := recv(t, f.filter)
	assert.Equal(t, protocol.MethodConfigure, filter["method"])

	require.NoError(t, c.Send(answer(3)))
	assert.NotEqual(t, Ready, c.State())
	close(f.ackHello)

	require.Eventually(t, func() bool { return c.State() == Ready }, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Send(answer(4)))

	for i := 1; i <= 4; i++ {
		m := recv(t, f.control)
		assert.Equal(t, "v="+string(rune('0'+i)), sdpOf(m))
		assert.Equal(t, testToken, m["accessToken"])
		assert.Equal(t, protocol.MethodSetSDPAnswer, m["data"].(map[string]any)["method"])
	}

	select {
	case m := <-f.control:
		t.Fatalf("unexpected extra frame %v", m)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, testToken, c.Token().Value)
}

func readyConn(t *testing.T, f *fakeServer) (*Connection, *websocket.Conn, *websocket.Conn) {
	t.Helper()
	c := newConn(t, f, startLoop(t))
	require.NoError(t, c.Connect(context.Background()))
	recv(t, f.hello)
	recv(t, f.filter)
	close(f.ackHello)
	require.Eventually(t, func() bool { return c.State() == Ready }, 3*time.Second, 5*time.Millisecond)
	return c, recv(t, f.controlConn), recv(t, f.eventsConn)
}

func TestConnectionHelloOnlyOnControl(t *testing.T) {
	c := New(loop.New(), Config{Server: "cam.local"})
	c.state = ControlConnecting
	require.NoError(t, c.Send(protocol.InitSessionRequest{SessionID: "S1", TargetID: "T1"}))

	c.handleFrame(newChannel(eventChannel, nil), []byte(`{"type":"hello"}`))
	assert.Equal(t, ControlConnecting, c.State())
	assert.Len(t, c.queue, 1)

	c.control = newChannel(controlChannel, nil)
	c.handleFrame(c.control, []byte(`{"type":"hello"}`))
	assert.Equal(t, Ready, c.State())
	assert.Empty(t, c.queue)
	assert.Len(t, c.control.send, 1)
}

func TestConnectionFlushKeepsUnsent(t *testing.T) {
	c := New(loop.New(), Config{Server: "cam.local"})
	c.state = ControlConnecting
	c.control = &wsChannel{kind: controlChannel, send: make(chan []byte, 1)}
	require.NoError(t, c.Send(answer(1)))
	require.NoError(t, c.Send(answer(2)))

	c.handleFrame(c.control, []byte(`{"type":"hello"}`))
	assert.Equal(t, ControlConnecting, c.State())
	require.Len(t, c.queue, 1)
	assert.Equal(t, answer(2), c.queue[0])

	<-c.control.send
	c.handleFrame(c.control, []byte(`{"type":"hello"}`))
	assert.Equal(t, Ready, c.State())
	assert.Empty(t, c.queue)
}

func TestConnectionRepliesOnArrivalChannel(t *testing.T) {
	f := newFakeServer(t)

	offers := make(chan *protocol.SDPOffer, 1)
	inits := make(chan *protocol.InitSessionResult, 1)
	c := newConn(t, f, startLoop(t))
	c.OnSDPOffer(func(m *protocol.SDPOffer) { offers <- m })
	c.OnServerLists(func(m *protocol.InitSessionResult) { inits <- m })

	require.NoError(t, c.Connect(context.Background()))
	recv(t, f.hello)
	recv(t, f.filter)
	close(f.ackHello)
	control, events := recv(t, f.controlConn), recv(t, f.eventsConn)

	require.NoError(t, control.WriteMessage(websocket.TextMessage, []byte(fixture(t, "sdp_offer"))))
	offer := recv(t, offers)
	assert.Equal(t, "sdp-content", offer.SDP)

	reply := recv(t, f.control)
	data := reply["data"].(map[string]any)
	assert.Equal(t, "5e0f0e1a-4c1f-4d8e-8a56-9e3b8f6f2a10", reply["correlationId"])
	assert.Equal(t, "B8A44FB69350", reply["targetId"])
	assert.Equal(t, protocol.TypeResponse, data["type"])
	assert.Equal(t, protocol.MethodSetSDPOffer, data["method"])

	// A request pushed on the event channel is answered there.
	require.NoError(t, events.WriteMessage(websocket.TextMessage, []byte(fixture(t, "init_session"))))
	lists := recv(t, inits)
	assert.Len(t, lists.Servers.TURN, 2)

	reply = recv(t, f.events)
	assert.Equal(t, "f2841edd-1537-4426-9761-dec492a4fa7f", reply["correlationId"])
	assert.Equal(t, protocol.MethodInitSession, reply["data"].(map[string]any)["method"])
}

func TestConnectionIgnoresBadFrames(t *testing.T) {
	f := newFakeServer(t)
	c, control, _ := readyConn(t, f)

	candidates := make(chan *protocol.ICECandidate, 2)
	c.OnICECandidate(func(m *protocol.ICECandidate) { candidates <- m })

	require.NoError(t, control.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	require.NoError(t, control.WriteMessage(websocket.TextMessage, []byte(`{"type":"signaling","data":{"type":"request","method":"setSdpOffer"}}`)))
	require.NoError(t, control.WriteMessage(websocket.TextMessage, []byte(fixture(t, "ice_candidate"))))

	cand := recv(t, candidates)
	assert.Equal(t, uint16(1), cand.MLineIndex)
	assert.Equal(t, Ready, c.State())

	// Only the valid request was acknowledged.
	reply := recv(t, f.control)
	assert.Equal(t, protocol.MethodAddICECandidate, reply["data"].(map[string]any)["method"])
}

func TestConnectionStreamEvents(t *testing.T) {
	f := newFakeServer(t)
	f.targetsBody = `{"data":{"targets":[
		{"id":"B8A44F000001","sessionId":"live-1","bearerName":"unit-1","started":"2024-08-22T13:00:00Z"},
		{"id":"B8A44F000002","sessionId":"gone","stopped":"2024-08-22T13:05:00Z"}
	]}}`

	started := make(chan *protocol.StreamStarted, 4)
	stopped := make(chan *protocol.StreamStopped, 1)
	peers := make(chan *protocol.PeerConnected, 1)

	c := newConn(t, f, startLoop(t))
	c.OnStreamStarted(func(m *protocol.StreamStarted) { started <- m })
	c.OnStreamStopped(func(m *protocol.StreamStopped) { stopped <- m })
	c.OnPeerConnected(func(m *protocol.PeerConnected) { peers <- m })

	require.NoError(t, c.Connect(context.Background()))
	recv(t, f.hello)
	recv(t, f.filter)
	close(f.ackHello)
	recv(t, f.controlConn)
	events := recv(t, f.eventsConn)

	fromTargets := recv(t, started)
	assert.Equal(t, "live-1", string(fromTargets.SessionID))
	assert.Equal(t, "B8A44F000001", string(fromTargets.TargetID))
	assert.Equal(t, "unit-1", fromTargets.Stream.BearerName)

	require.NoError(t, events.WriteMessage(websocket.TextMessage, []byte(fixture(t, "foreign_topic"))))
	require.NoError(t, events.WriteMessage(websocket.TextMessage, []byte(fixture(t, "peer_connected"))))
	require.NoError(t, events.WriteMessage(websocket.TextMessage, []byte(fixture(t, "stream_started"))))
	require.NoError(t, events.WriteMessage(websocket.TextMessage, []byte(fixture(t, "stream_stopped"))))

	assert.Equal(t, "client", recv(t, peers).Source)
	ss := recv(t, started)
	assert.Equal(t, "971eb7ba-7a4c-458f-96d7-d6d019c096cf", string(ss.SessionID))
	assert.Equal(t, "jenson-cellphone", ss.Stream.BearerName)
	assert.Equal(t, "971eb7ba-7a4c-458f-96d7-d6d019c096cf", string(recv(t, stopped).SessionID))

	// Notifications are never acknowledged.
	select {
	case m := <-f.events:
		t.Fatalf("unexpected frame on event channel %v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectionAuthFailure(t *testing.T) {
	cases := []struct {
		name   string
		user   string
		status int
		body   string
		want   error
	}{
		{"wrong password", "nobody", http.StatusOK, "", ErrAuth},
		{"server error", "root", http.StatusInternalServerError, "", ErrBadServerResponse},
		{"no token", "root", http.StatusOK, `{"data":{}}`, ErrBadServerResponse},
		{"not json", "root", http.StatusOK, `<html>`, ErrBadServerResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeServer(t)
			f.tokenStatus = tc.status
			if tc.body != "" {
				f.tokenBody = tc.body
			}

			c := New(startLoop(t), Config{Server: f.addr(), User: tc.user, Pass: "secret"})
			t.Cleanup(c.Close)
			failures := make(chan error, 1)
			c.OnFailure(func(err error) { failures <- err })

			require.NoError(t, c.Connect(context.Background()))
			assert.ErrorIs(t, recv(t, failures), tc.want)
			assert.Equal(t, Failed, c.State())
			assert.ErrorIs(t, c.Send(answer(1)), ErrClosed)
			assert.Error(t, c.Connect(context.Background()))
		})
	}
}

func TestConnectionControlDropFails(t *testing.T) {
	f := newFakeServer(t)

	failures := make(chan error, 1)
	c, control, _ := readyConn(t, f)
	c.OnFailure(func(err error) { failures <- err })

	require.NoError(t, control.Close())
	err := recv(t, failures)
	assert.NotErrorIs(t, err, ErrAuth)
	assert.Equal(t, Failed, c.State())
}

func TestConnectionClose(t *testing.T) {
	f := newFakeServer(t)
	c, _, _ := readyConn(t, f)

	failed := make(chan error, 1)
	c.OnFailure(func(err error) { failed <- err })

	c.Close()
	c.Close()
	assert.Equal(t, Closed, c.State())
	assert.ErrorIs(t, c.Send(answer(1)), ErrClosed)

	select {
	case err := <-failed:
		t.Fatalf("close reported failure: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandlersUnsubscribe(t *testing.T) {
	var h handlers[int]
	var got []int
	off := h.add(func(v int) { got = append(got, v) })
	h.add(func(v int) { got = append(got, v*10) })

	h.emit(1)
	off()
	h.emit(2)
	assert.Equal(t, []int{1, 10, 20}, got)

	h.clear()
	h.emit(3)
	assert.Equal(t, []int{1, 10, 20}, got)
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "wss://cam.local:8443/local/BodyWornLiveStandalone/client?authorization=a%2Fb%2Bc%3D", controlURL("cam.local:8443", "a/b+c="))
	assert.Equal(t, "wss://cam.local/vapix/ws-data-stream?sources=events", eventsURL("cam.local"))
	assert.Equal(t, "https://cam.local/local/BodyWornLiveStandalone/auth.cgi", httpsURL("cam.local", pathAuth))
}
