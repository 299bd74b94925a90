package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/kverrall/namecue/internal/cue"
	"github.com/kverrall/namecue/internal/gateway"
	"github.com/kverrall/namecue/internal/store"
	"github.com/kverrall/namecue/pkg/types"
)

// ── Protocol tests ────────────────────────────────────────────────────────────

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := gateway.Encode(gateway.TypeSpeak, gateway.SpeakRequest{
		ID:     "op-1",
		Text:   "The word starts with the letter B.",
		Gender: "female",
		Volume: 0.8,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	env, err := gateway.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Type != gateway.TypeSpeak {
		t.Errorf("Type = %q, want %q", env.Type, gateway.TypeSpeak)
	}

	var req gateway.SpeakRequest
	if err := gateway.DecodePayload(env, &req); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if req.ID != "op-1" || req.Gender != "female" || req.Volume != 0.8 {
		t.Errorf("payload = %+v", req)
	}
	if !strings.HasPrefix(req.Text, "The word starts") {
		t.Errorf("Text = %q", req.Text)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	t.Parallel()

	if _, err := gateway.Decode([]byte("not json")); err == nil {
		t.Error("Decode accepted garbage")
	}
	if _, err := gateway.Decode([]byte(`{"payload": {}}`)); err == nil {
		t.Error("Decode accepted a frame without a type")
	}
	env, err := gateway.Decode([]byte(`{"type": "transcript"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var tr gateway.Transcript
	if err := gateway.DecodePayload(env, &tr); err == nil {
		t.Error("DecodePayload accepted a missing payload")
	}
}

func TestEncodeWithoutPayload(t *testing.T) {
	t.Parallel()

	data, err := gateway.Encode(gateway.TypeSpeakStop, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	env, err := gateway.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Type != gateway.TypeSpeakStop || len(env.Payload) != 0 {
		t.Errorf("env = %+v", env)
	}
}

// ── Server tests ──────────────────────────────────────────────────────────────

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	gw := gateway.NewServer(store.NewMemStore(), cue.Config{}, types.DefaultMatchSettings())
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// companion is a scripted browser-companion client.
type companion struct {
	t    *testing.T
	conn *websocket.Conn
	ctx  context.Context
}

func dialCompanion(t *testing.T, srv *httptest.Server) *companion {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return &companion{t: t, conn: conn, ctx: ctx}
}

func (c *companion) send(typ string, payload any) {
	c.t.Helper()
	data, err := gateway.Encode(typ, payload)
	if err != nil {
		c.t.Fatalf("encode %s: %v", typ, err)
	}
	if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		c.t.Fatalf("write %s: %v", typ, err)
	}
}

// next reads frames until one of the wanted type arrives, answering speak
// requests along the way so narration never stalls the script.
func (c *companion) next(typ string) gateway.Envelope {
	c.t.Helper()
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.t.Fatalf("read while waiting for %s: %v", typ, err)
		}
		env, err := gateway.Decode(data)
		if err != nil {
			c.t.Fatalf("decode: %v", err)
		}
		if env.Type == typ {
			return env
		}
		if env.Type == gateway.TypeSpeak {
			var req gateway.SpeakRequest
			if err := gateway.DecodePayload(env, &req); err != nil {
				c.t.Fatalf("decode speak: %v", err)
			}
			c.send(gateway.TypeSpeakDone, gateway.SpeakDone{ID: req.ID})
		}
	}
}

func payload[T any](t *testing.T, env gateway.Envelope) T {
	t.Helper()
	var v T
	if err := gateway.DecodePayload(env, &v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Type, err)
	}
	return v
}

func TestSessionCorrectAnswerRun(t *testing.T) {
	t.Parallel()

	c := dialCompanion(t, startServer(t))
	c.send(gateway.TypeStart, gateway.StartRequest{
		UserID:      "u1",
		StimulusIDs: []string{"broom"},
	})

	trialEnv := payload[gateway.TrialStart](t, c.next(gateway.TypeTrial))
	if trialEnv.StimulusID != "broom" || trialEnv.Total != 1 {
		t.Errorf("trial = %+v", trialEnv)
	}

	cueEnv := payload[gateway.CueEvent](t, c.next(gateway.TypeCue))
	if cueEnv.Level != 1 {
		t.Errorf("first cue level = %d, want 1", cueEnv.Level)
	}

	listen := payload[gateway.ListenStart](t, c.next(gateway.TypeListenStart))
	c.send(gateway.TypeTranscript, gateway.Transcript{
		ID: listen.ID, Text: "that's a broom", Final: true, Confidence: 0.92,
	})

	answer := payload[gateway.AnswerEvent](t, c.next(gateway.TypeAnswer))
	if !answer.Correct {
		t.Errorf("answer = %+v, want correct", answer)
	}

	summary := payload[gateway.SummaryEvent](t, c.next(gateway.TypeSummary))
	if len(summary.Outcomes) != 1 {
		t.Fatalf("summary outcomes = %d, want 1", len(summary.Outcomes))
	}
	o := summary.Outcomes[0]
	if !o.Correct || o.Revealed || o.Level != 1 || o.Name != "broom" {
		t.Errorf("outcome = %+v", o)
	}
}

func TestSessionWrongAnswerEscalates(t *testing.T) {
	t.Parallel()

	c := dialCompanion(t, startServer(t))
	c.send(gateway.TypeStart, gateway.StartRequest{StimulusIDs: []string{"kettle"}})

	listen := payload[gateway.ListenStart](t, c.next(gateway.TypeListenStart))
	c.send(gateway.TypeTranscript, gateway.Transcript{
		ID: listen.ID, Text: "toaster", Final: true, Confidence: 0.9,
	})

	answer := payload[gateway.AnswerEvent](t, c.next(gateway.TypeAnswer))
	if answer.Correct {
		t.Errorf("answer = %+v, want incorrect", answer)
	}

	// Interim transcripts must not produce verdicts, so the next frames
	// belong to the escalated cue.
	for {
		cueEnv := payload[gateway.CueEvent](t, c.next(gateway.TypeCue))
		if cueEnv.Level == 2 {
			break
		}
		if cueEnv.Level > 2 {
			t.Fatalf("cue level jumped to %d", cueEnv.Level)
		}
	}
}

func TestSessionInterimTranscriptIgnored(t *testing.T) {
	t.Parallel()

	c := dialCompanion(t, startServer(t))
	c.send(gateway.TypeStart, gateway.StartRequest{StimulusIDs: []string{"sofa"}})

	listen := payload[gateway.ListenStart](t, c.next(gateway.TypeListenStart))
	c.send(gateway.TypeTranscript, gateway.Transcript{
		ID: listen.ID, Text: "so", Final: false, Confidence: 0.3,
	})
	c.send(gateway.TypeTranscript, gateway.Transcript{
		ID: listen.ID, Text: "sofa", Final: true, Confidence: 0.9,
	})

	answer := payload[gateway.AnswerEvent](t, c.next(gateway.TypeAnswer))
	if !answer.Correct || answer.Answer != "sofa" {
		t.Errorf("answer = %+v, want correct sofa", answer)
	}
}

func TestSessionUnknownStimulus(t *testing.T) {
	t.Parallel()

	c := dialCompanion(t, startServer(t))
	c.send(gateway.TypeStart, gateway.StartRequest{StimulusIDs: []string{"zeppelin"}})

	errEnv := payload[gateway.ErrorEvent](t, c.next(gateway.TypeError))
	if errEnv.Message == "" {
		t.Error("error event without message")
	}
}

func TestSessionCategoryFilter(t *testing.T) {
	t.Parallel()

	c := dialCompanion(t, startServer(t))
	c.send(gateway.TypeStart, gateway.StartRequest{Category: "a piece of furniture"})

	trialEnv := payload[gateway.TrialStart](t, c.next(gateway.TypeTrial))
	if trialEnv.StimulusID != "sofa" {
		t.Errorf("trial stimulus = %q, want sofa", trialEnv.StimulusID)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestReadyzReportsStorage(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if _, ok := body.Checks["storage"]; !ok {
		t.Errorf("checks = %v, want a storage entry", body.Checks)
	}
}
