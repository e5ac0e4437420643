package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/camera"
	"github.com/teslashibe/suradas/pkg/command"
	"github.com/teslashibe/suradas/pkg/history"
	"github.com/teslashibe/suradas/pkg/inference"
	"github.com/teslashibe/suradas/pkg/metrics"
)

const testSession = "6f1c1c6e-2a57-4d0e-9c8e-3f0b1f6b9a11"

type fakeOfferer struct {
	got webrtc.SessionDescription
	err error
}

func (f *fakeOfferer) Offer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	f.got = offer
	if f.err != nil {
		return nil, f.err
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

type fixture struct {
	srv     *Server
	model   *inference.Mock
	grabber *camera.Grabber
	store   *history.Memory
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	model := inference.NewMock()
	grabber := camera.NewGrabber("test")
	store := history.NewMemory()

	cfg := assistant.DefaultConfig()
	cfg.Speak = false
	a := assistant.New(assistant.Deps{
		Model:   model,
		Camera:  grabber,
		History: store,
	}, assistant.WithConfig(cfg))

	all := append([]Option{WithCamera(grabber)}, opts...)
	srv := NewServer(a, all...)

	ctx, cancel := context.WithCancel(context.Background())
	srv.Start(ctx)
	t.Cleanup(cancel)

	return &fixture{srv: srv, model: model, grabber: grabber, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: testSession})
	resp, err := f.srv.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCommand_Dispatch(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/command", `{"text":"what is this object"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	r := decode[assistant.Reply](t, resp)
	assert.Equal(t, command.KindObject, r.Command)
	assert.True(t, r.NeedsFrame)
	assert.Equal(t, testSession, r.Session)

	resp = f.do(t, http.MethodPost, "/api/command", `{"text":"sing me a song"}`)
	r = decode[assistant.Reply](t, resp)
	assert.Equal(t, command.MsgNotRecognized, r.Text)
	assert.Equal(t, assistant.LevelWarning, r.Level)
}

func TestCommand_BadBody(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/command", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.NotEmpty(t, body["error"])
}

func TestSessionCookie_Assigned(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/examples", nil)
	resp, err := f.srv.App().Test(req, -1)
	require.NoError(t, err)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie not set")
	assert.Len(t, cookie.Value, 36)

	// A valid cookie is kept as is.
	resp = f.do(t, http.MethodGet, "/api/examples", "")
	for _, c := range resp.Cookies() {
		assert.NotEqual(t, SessionCookie, c.Name)
	}
}

func TestHistory_PerSession(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/command", `{"text":"where am i"}`)
	f.do(t, http.MethodPost, "/api/command", `{"text":"detect currency"}`)

	entries := decode[[]history.Entry](t, f.do(t, http.MethodGet, "/api/history", ""))
	require.Len(t, entries, 2)
	assert.Equal(t, "where am i", entries[0].Command)
	assert.Equal(t, "detect currency", entries[1].Command)

	other, err := f.store.List(context.Background(), "someone-else", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestHistory_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/history", "")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))
}

func TestCapture(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/capture", `{"kind":"translate"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.grabber.Put([]byte{0xff, 0xd8, 0xff, 0xd9})
	r := decode[assistant.Reply](t, f.do(t, http.MethodPost, "/api/capture", `{"kind":"object"}`))
	assert.Equal(t, assistant.LevelSuccess, r.Level)
	assert.Equal(t, "I see a mock image", r.Text)
	require.NotNil(t, f.model.LastCall())
	assert.Equal(t, 1, f.model.LastCall().Frames)
}

func TestTranslate(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/translate", `{"text":"hello","lang":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r := decode[assistant.Reply](t, f.do(t, http.MethodPost, "/api/translate", `{"text":"hello","lang":"French"}`))
	assert.Equal(t, "Mock response", r.Text)
	assert.Equal(t, "French", r.TargetLanguage)
}

func TestListen_NoMicrophone(t *testing.T) {
	f := newFixture(t)
	res := decode[ListenResponse](t, f.do(t, http.MethodPost, "/api/listen", ""))
	assert.NotEmpty(t, res.Error)
	assert.Nil(t, res.Reply)
}

func TestExamples(t *testing.T) {
	f := newFixture(t)
	list := decode[[]string](t, f.do(t, http.MethodGet, "/api/examples", ""))
	assert.Equal(t, command.Examples(), list)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[assistant.Status](t, resp)
	assert.True(t, st.Healthy)
	assert.Equal(t, "test", st.Camera)

	f.model.HealthFunc = func(ctx context.Context) error { return errors.New("down") }
	resp = f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestFrame(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/camera/frame", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.grabber.Put([]byte{0xff, 0xd8, 0xff, 0xd9})
	resp = f.do(t, http.MethodGet, "/api/camera/frame", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xd9}, body)
}

func TestOffer(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/camera/offer", `{"sdp":"v=0 offer"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	off := &fakeOfferer{}
	f = newFixture(t, WithIngest(off))
	resp = f.do(t, http.MethodPost, "/api/camera/offer", `{"sdp":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ans := decode[OfferRequest](t, f.do(t, http.MethodPost, "/api/camera/offer", `{"sdp":"v=0 offer","type":"offer"}`))
	assert.Equal(t, "v=0 answer", ans.SDP)
	assert.Equal(t, "answer", ans.Type)
	assert.Equal(t, webrtc.SDPTypeOffer, off.got.Type)
	assert.Equal(t, "v=0 offer", off.got.SDP)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/metrics", "")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode, "metrics mounted without a registry")

	f = newFixture(t, WithMetrics(metrics.New()))
	resp = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Start Listening")
}

func TestEventsWebSocket(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go f.srv.App().Listener(ln)
	t.Cleanup(func() { f.srv.App().Shutdown() })

	header := http.Header{}
	header.Set("Cookie", SessionCookie+"="+testSession)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/events", header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.eventHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post("http://"+ln.Addr().String()+"/api/command", "application/json",
		strings.NewReader(`{"text":"translate to Spanish"}`))
	require.NoError(t, err)
	resp.Body.Close()

	// The POST carried no cookie, so it ran in a fresh session; only a
	// request from this browser reaches it.
	req, _ := http.NewRequest(http.MethodPost, "http://"+ln.Addr().String()+"/api/command",
		strings.NewReader(`{"text":"where am i"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: testSession})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var sawReply, sawHistory bool
	for !(sawReply && sawHistory) {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		switch ev.Type {
		case EventReply:
			require.NotNil(t, ev.Reply)
			assert.Equal(t, command.KindLocation, ev.Reply.Command)
			sawReply = true
		case EventHistory:
			require.Len(t, ev.History, 1)
			assert.Equal(t, "where am i", ev.History[0].Command)
			sawHistory = true
		}
	}
}
