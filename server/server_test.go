package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/relay"
)

func newTestServer(t *testing.T, delay time.Duration, optFns ...func(o *Options)) (*Server, *roundtable.Roundtable, *httptest.Server) {
	t.Helper()

	llm := model.NewMockModel("mock", "mock")
	llm.SetResponder(func(ctx context.Context, _ model.Request) (model.MockTurn, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return model.MockTurn{}, ctx.Err()
			}
		}
		return model.MockTurn{Text: "well argued point"}, nil
	})

	rt := roundtable.New(llm)
	s := New(rt, optFns...)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Wait()
		cancel()
	})

	return s, rt, srv
}

func createSession(t *testing.T, srv *httptest.Server, body string) *core.Session {
	t.Helper()

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	sess := &core.Session{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(sess))

	return sess
}

func TestTemplates(t *testing.T) {
	_, _, srv := newTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/templates")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Templates []struct {
			ModeID string `json:"mode_id"`
		} `json:"templates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Templates, 2)
	assert.Equal(t, "dialectical_mode", body.Templates[0].ModeID)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSessionCRUD(t *testing.T) {
	_, _, srv := newTestServer(t, 0)

	sess := createSession(t, srv, `{"mode":"brainstorm_mode","topic":"city transport","collection":"nb"}`)
	assert.Equal(t, core.SessionCreated, sess.Status)
	assert.Equal(t, 4, sess.AgentCount)

	resp, err := http.Get(srv.URL + "/sessions/" + sess.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sessions?collection=nb&limit=5")
	require.NoError(t, err)
	var list struct {
		Sessions []core.Session `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Len(t, list.Sessions, 1)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+sess.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sessions/" + sess.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateSession_BadRequests(t *testing.T) {
	_, _, srv := newTestServer(t, 0)

	for name, body := range map[string]string{
		"malformed":     `{`,
		"missing topic": `{"mode":"dialectical_mode"}`,
		"unknown mode":  `{"mode":"nope","topic":"t"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/sessions", "application/json", bytes.NewBufferString(body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Get(srv.URL + "/sessions?limit=x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunSession(t *testing.T) {
	_, _, srv := newTestServer(t, 0)

	sess := createSession(t, srv, `{"mode":"dialectical_mode","topic":"remote work"}`)

	resp, err := http.Post(srv.URL+"/sessions/"+sess.ID+"/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var done core.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&done))
	assert.Equal(t, core.SessionCompleted, done.Status)
	assert.Len(t, done.Messages, 5)
	assert.Contains(t, done.FinalReport, "Discussion Report")
}

func TestRunSession_IgnoresClientCancellation(t *testing.T) {
	s, rt, srv := newTestServer(t, 0)

	sess := createSession(t, srv, `{"mode":"dialectical_mode","topic":"remote work"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/run", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	stored, err := rt.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, stored.Status)
	assert.Len(t, stored.Messages, 5)
}

type sseFrame struct {
	name string
	data string
}

func readSSE(t *testing.T, resp *http.Response) []sseFrame {
	t.Helper()

	var (
		frames []sseFrame
		cur    sseFrame
	)
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.name != "":
			frames = append(frames, cur)
			cur = sseFrame{}
		}
	}

	return frames
}

func TestStream_SSE(t *testing.T) {
	_, rt, srv := newTestServer(t, 0)

	sess := createSession(t, srv, `{"mode":"dialectical_mode","topic":"remote work"}`)

	resp, err := http.Get(srv.URL + "/sessions/" + sess.ID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := readSSE(t, resp)
	require.GreaterOrEqual(t, len(frames), 3)

	assert.Equal(t, "session_created", frames[0].name)
	assert.Contains(t, frames[0].data, sess.ID)
	assert.Equal(t, "agent_start", frames[1].name)
	assert.Equal(t, "run_complete", frames[len(frames)-2].name)
	assert.Equal(t, "session_complete", frames[len(frames)-1].name)

	chunks := map[string]string{}
	for _, f := range frames {
		if f.name != "agent_chunk" {
			continue
		}
		var ev core.Event
		require.NoError(t, json.Unmarshal([]byte(f.data), &ev))
		chunks[ev.AgentID] += ev.Text
	}
	assert.Equal(t, "well argued point", chunks["synthesizer"])

	stored, err := rt.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, stored.Status)
}

func TestStream_UnknownSession(t *testing.T) {
	_, _, srv := newTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/sessions/missing/stream")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStream_RunSurvivesDisconnect(t *testing.T) {
	s, rt, srv := newTestServer(t, 20*time.Millisecond)

	sess := createSession(t, srv, `{"mode":"dialectical_mode","topic":"remote work"}`)

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+sess.ID+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: session_created\n", line)

	cancel()
	resp.Body.Close()

	s.Wait()

	stored, err := rt.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, stored.Status)
	assert.Len(t, stored.Messages, 5)
}

func TestStream_WebSocket(t *testing.T) {
	_, _, srv := newTestServer(t, 0)

	sess := createSession(t, srv, `{"mode":"brainstorm_mode","topic":"city transport"}`)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sess.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var (
		types    []core.EventType
		complete int
	)
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var ev core.Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		types = append(types, ev.Type)
		if ev.Type == core.EventAgentComplete {
			complete++
		}
	}

	require.NotEmpty(t, types)
	assert.Equal(t, core.EventRunComplete, types[len(types)-1])
	assert.Equal(t, 7, complete)
}

func TestFeedAndPublisher(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	completions := make(chan *nats.Msg, 1)
	_, err = nc.ChanSubscribe("roundtable.runs.*.run_complete", completions)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	s, _, srv := newTestServer(t, 0, func(o *Options) {
		o.Publisher = relay.NewNATSSink(nc, "")
	})

	feed, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer feed.Close()
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	sess := createSession(t, srv, `{"mode":"dialectical_mode","topic":"remote work"}`)
	resp, err := http.Post(srv.URL+"/sessions/"+sess.ID+"/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	// Non-streamed runs publish lifecycle events too.
	select {
	case msg := <-completions:
		assert.Equal(t, "roundtable.runs."+sess.ID+".run_complete", msg.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for nats event")
	}

	require.NoError(t, feed.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev core.Event
	require.NoError(t, feed.ReadJSON(&ev))
	assert.Equal(t, sess.ID, ev.RunID)
}
