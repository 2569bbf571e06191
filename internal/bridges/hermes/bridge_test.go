package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/nerrad567/nlu-hermes/internal/graphstore"
	"github.com/nerrad567/nlu-hermes/internal/infrastructure/mqtt"
	"github.com/nerrad567/nlu-hermes/internal/nlu"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu               sync.Mutex
	published        []mockPublish
	subscribeCalls   []string
	unsubscribeCalls []string
	handlers       map[string]mqtt.MessageHandler
	connected      bool
	publishErr     error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

// Publish records the message. Topics the real client would reject are
// refused the same way.
func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := mqtt.ValidatePublishTopic(topic); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeCalls = append(m.subscribeCalls, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribeCalls = append(m.unsubscribeCalls, topic)
	delete(m.handlers, topic)
	return nil
}

func (m *MockMQTTClient) UnsubscribeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribeCalls...)
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// PublishedTo returns messages published to topic, in order.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Replies returns everything published except health messages.
func (m *MockMQTTClient) Replies() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if !strings.HasSuffix(p.Topic, "/health") {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) SubscribeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subscribeCalls...)
}

func (m *MockMQTTClient) HandlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// SimulateMessage delivers payload to every handler whose filter matches.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	var matched []mqtt.MessageHandler
	for filter, h := range m.handlers {
		if mqtt.MatchTopic(filter, topic) {
			matched = append(matched, h)
		}
	}
	m.mu.Unlock()

	for _, h := range matched {
		_ = h(topic, payload) //nolint:errcheck // Bridge handler never fails
	}
}

// blockingTrainer holds every Train call until release is closed.
type blockingTrainer struct {
	started chan struct{}
	release chan struct{}
	inner   *nlu.Trainer
}

func newBlockingTrainer() *blockingTrainer {
	return &blockingTrainer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		inner:   nlu.NewTrainer(nlu.TrainerOptions{}),
	}
}

func (b *blockingTrainer) Train(ctx context.Context, input nlu.TrainInput) (*nlu.Graph, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.inner.Train(ctx, input)
}

// recordingTelemetry implements Telemetry for testing.
type recordingTelemetry struct {
	mu      sync.Mutex
	queries []string
	trains  []bool
}

func (r *recordingTelemetry) WriteQuery(_ string, intent string, _ bool, _ float64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, intent)
}

func (r *recordingTelemetry) WriteTrain(_ string, success bool, _, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trains = append(r.trains, success)
}

func (r *recordingTelemetry) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries), len(r.trains)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle gives the dispatch loop time to process anything in flight.
func settle() {
	time.Sleep(50 * time.Millisecond)
}

type testBridge struct {
	*Bridge
	mqtt  *MockMQTTClient
	store *graphstore.Store
}

func startBridge(t *testing.T, opts BridgeOptions) *testBridge {
	t.Helper()

	mock := NewMockMQTTClient()
	opts.MQTTClient = mock
	if opts.Store == nil {
		opts.Store = graphstore.New(nil)
	}
	store, ok := opts.Store.(*graphstore.Store)
	if !ok {
		t.Fatalf("startBridge needs a *graphstore.Store, got %T", opts.Store)
	}
	if opts.Recognizer == nil {
		opts.Recognizer = nlu.NewRecognizer()
	}
	if opts.Trainer == nil {
		opts.Trainer = nlu.NewTrainer(nlu.TrainerOptions{})
	}
	if opts.ClientID == "" {
		opts.ClientID = "nlu-test"
	}

	b, err := NewBridge(opts)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)

	b.HandleConnected()
	want := len(b.Topics())
	waitFor(t, "subscriptions", func() bool { return mock.HandlerCount() == want })

	return &testBridge{Bridge: b, mqtt: mock, store: store}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return data
}

var lightSentences = map[string]any{
	"lights": []any{"turn on the light", "turn off the light"},
}

// =============================================================================
// Construction
// =============================================================================

func TestNewBridge_MissingDependencies(t *testing.T) {
	full := BridgeOptions{
		MQTTClient: NewMockMQTTClient(),
		Store:      graphstore.New(nil),
		Recognizer: nlu.NewRecognizer(),
		Trainer:    nlu.NewTrainer(nlu.TrainerOptions{}),
	}

	tests := []struct {
		name   string
		mutate func(*BridgeOptions)
	}{
		{"no mqtt", func(o *BridgeOptions) { o.MQTTClient = nil }},
		{"no store", func(o *BridgeOptions) { o.Store = nil }},
		{"no recognizer", func(o *BridgeOptions) { o.Recognizer = nil }},
		{"no trainer", func(o *BridgeOptions) { o.Trainer = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := full
			tt.mutate(&opts)
			if _, err := NewBridge(opts); !errors.Is(err, ErrMissingDependency) {
				t.Errorf("NewBridge() error = %v, want ErrMissingDependency", err)
			}
		})
	}

	full.QoS = 3
	if _, err := NewBridge(full); !errors.Is(err, mqtt.ErrInvalidQoS) {
		t.Errorf("NewBridge(qos 3) error = %v, want ErrInvalidQoS", err)
	}
}

func TestBridge_Topics(t *testing.T) {
	tests := []struct {
		name  string
		sites []string
		want  []string
	}{
		{"all sites", nil, []string{"hermes/nlu/query", "rhasspy/nlu/+/train"}},
		{"filtered", []string{"kitchen", "bedroom", "kitchen", ""}, []string{
			"hermes/nlu/query",
			"rhasspy/nlu/bedroom/train",
			"rhasspy/nlu/kitchen/train",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBridge(BridgeOptions{
				MQTTClient: NewMockMQTTClient(),
				Store:      graphstore.New(nil),
				Recognizer: nlu.NewRecognizer(),
				Trainer:    nlu.NewTrainer(nlu.TrainerOptions{}),
				SiteIDs:    tt.sites,
			})
			if err != nil {
				t.Fatalf("NewBridge() error = %v", err)
			}
			got := b.Topics()
			if len(got) != len(tt.want) {
				t.Fatalf("Topics() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Topics()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBridge_StartTwice(t *testing.T) {
	tb := startBridge(t, BridgeOptions{})
	if err := tb.Start(context.Background()); err == nil {
		t.Error("second Start() expected error")
	}
}

// =============================================================================
// Queries
// =============================================================================

func TestBridge_QueryWithoutGraphIsNotRecognized(t *testing.T) {
	tb := startBridge(t, BridgeOptions{})

	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","id":"q1","sessionId":"s1"}`))
	waitFor(t, "not recognized", func() bool { return len(tb.mqtt.PublishedTo(TopicNotRecognized)) == 1 })

	var msg NluIntentNotRecognized
	if err := json.Unmarshal(tb.mqtt.PublishedTo(TopicNotRecognized)[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.ID != "q1" || msg.SessionID != "s1" {
		t.Errorf("correlation = (%q, %q), want (q1, s1)", msg.ID, msg.SessionID)
	}
	if msg.SiteID != DefaultSiteID {
		t.Errorf("SiteID = %q, want %q", msg.SiteID, DefaultSiteID)
	}
}

func TestBridge_TrainThenRecognize(t *testing.T) {
	telemetry := &recordingTelemetry{}
	tb := startBridge(t, BridgeOptions{Telemetry: telemetry})

	tb.mqtt.SimulateMessage("rhasspy/nlu/kitchen/train", mustJSON(t, map[string]any{
		"id":        "t1",
		"sentences": lightSentences,
	}))
	waitFor(t, "train success", func() bool {
		return len(tb.mqtt.PublishedTo(TrainSuccessTopic("kitchen"))) == 1
	})

	var success NluTrainSuccess
	if err := json.Unmarshal(tb.mqtt.PublishedTo(TrainSuccessTopic("kitchen"))[0].Payload, &success); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if success.ID != "t1" || success.SiteID != "kitchen" {
		t.Errorf("trainSuccess = %+v, want id t1 site kitchen", success)
	}

	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","siteId":"kitchen","id":"q2","customData":"cd"}`))
	waitFor(t, "intent", func() bool { return len(tb.mqtt.PublishedTo(IntentTopic("lights"))) == 1 })

	var intent NluIntent
	if err := json.Unmarshal(tb.mqtt.PublishedTo(IntentTopic("lights"))[0].Payload, &intent); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if intent.Intent.IntentName != "lights" {
		t.Errorf("IntentName = %q, want lights", intent.Intent.IntentName)
	}
	if math.Abs(intent.Intent.ConfidenceScore-1) > 1e-9 {
		t.Errorf("ConfidenceScore = %v, want 1", intent.Intent.ConfidenceScore)
	}
	if intent.ID != "q2" || intent.SiteID != "kitchen" {
		t.Errorf("correlation = (%q, %q), want (q2, kitchen)", intent.ID, intent.SiteID)
	}
	if intent.CustomData == nil || *intent.CustomData != "cd" {
		t.Errorf("CustomData = %v, want cd", intent.CustomData)
	}

	queries, trains := telemetry.counts()
	if queries != 1 || trains != 1 {
		t.Errorf("telemetry = (%d queries, %d trains), want (1, 1)", queries, trains)
	}
}

func TestBridge_MalformedPayloadsAreDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tb := startBridge(t, BridgeOptions{Metrics: metrics})

	payloads := [][]byte{
		[]byte(`not json`),
		[]byte(`null`),
		[]byte(`[1,2]`),
		[]byte(`{"siteId":"kitchen"}`),
		[]byte(`{"input": 5}`),
	}
	for _, p := range payloads {
		tb.mqtt.SimulateMessage(TopicQuery, p)
	}
	tb.mqtt.SimulateMessage("rhasspy/nlu/kitchen/train", []byte(`"sentences"`))

	waitFor(t, "drops counted", func() bool { return metrics.Snapshot().Dropped == 6 })
	settle()

	if replies := tb.mqtt.Replies(); len(replies) != 0 {
		t.Errorf("published %d replies for malformed input, want 0: %+v", len(replies), replies)
	}
	if got := testutil.ToFloat64(metrics.dropped.WithLabelValues(DropDecodeError)); got != 6 {
		t.Errorf("decode drops = %v, want 6", got)
	}
}

func TestBridge_SiteFilter(t *testing.T) {
	tb := startBridge(t, BridgeOptions{SiteIDs: []string{"kitchen"}})
	tb.store.Replace(mustTrain(t, lightSentences))

	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","siteId":"bedroom","id":"other"}`))
	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","id":"nosite"}`))
	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","siteId":"kitchen","id":"mine"}`))

	waitFor(t, "two intents", func() bool { return len(tb.mqtt.PublishedTo(IntentTopic("lights"))) == 2 })
	settle()

	published := tb.mqtt.PublishedTo(IntentTopic("lights"))
	if len(published) != 2 {
		t.Fatalf("published %d intents, want 2", len(published))
	}
	for _, p := range published {
		var msg NluIntent
		if err := json.Unmarshal(p.Payload, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.ID == "other" {
			t.Error("answered a query for a site outside the filter")
		}
	}

	// A train for another site is never delivered: only kitchen is subscribed.
	for _, topic := range tb.mqtt.SubscribeCalls() {
		if topic == "rhasspy/nlu/+/train" {
			t.Error("subscribed to wildcard train topic with a site filter")
		}
	}
}

func TestBridge_IntentFilter(t *testing.T) {
	tb := startBridge(t, BridgeOptions{})
	tb.store.Replace(mustTrain(t, map[string]any{
		"lights": []any{"turn on the light"},
		"music":  []any{"play music"},
	}))

	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","intentFilter":["music"]}`))
	waitFor(t, "not recognized", func() bool { return len(tb.mqtt.PublishedTo(TopicNotRecognized)) == 1 })
	if n := len(tb.mqtt.PublishedTo(IntentTopic("lights"))); n != 0 {
		t.Errorf("published %d lights intents, want 0", n)
	}
}

type panickingRecognizer struct{}

func (panickingRecognizer) Recognize(context.Context, *nlu.Graph, nlu.Query) (*nlu.Recognition, error) {
	panic("boom")
}

func TestBridge_RecognizerPanicStillReplies(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tb := startBridge(t, BridgeOptions{Recognizer: panickingRecognizer{}, Metrics: metrics})
	tb.store.Replace(mustTrain(t, lightSentences))

	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","id":"q"}`))
	waitFor(t, "not recognized", func() bool { return len(tb.mqtt.PublishedTo(TopicNotRecognized)) == 1 })

	if got := testutil.ToFloat64(metrics.queries.WithLabelValues(ResultFault)); got != 1 {
		t.Errorf("fault queries = %v, want 1", got)
	}
}

func TestBridge_PublishFailureIsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tb := startBridge(t, BridgeOptions{Metrics: metrics})
	tb.mqtt.SetPublishError(mqtt.ErrNotConnected)

	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"hello"}`))
	waitFor(t, "publish error", func() bool {
		return testutil.ToFloat64(metrics.publishErrors) == 1
	})
}

// =============================================================================
// Training
// =============================================================================

func mustTrain(t *testing.T, sentences map[string]any) *nlu.Graph {
	t.Helper()
	g, err := nlu.NewTrainer(nlu.TrainerOptions{}).Train(context.Background(), nlu.TrainInput{Sentences: sentences})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return g
}

func TestBridge_FailedTrainKeepsGraph(t *testing.T) {
	tb := startBridge(t, BridgeOptions{})
	before := mustTrain(t, lightSentences)
	tb.store.Replace(before)
	beforeData, err := nlu.EncodeGraph(before)
	if err != nil {
		t.Fatalf("EncodeGraph() error = %v", err)
	}

	tests := []struct {
		name    string
		payload string
	}{
		{"invalid template", `{"id":"bad1","sentences":{"x":5}}`},
		{"no sentences", `{"id":"bad2","sentences":{}}`},
		{"missing graph file", `{"id":"bad3","graph_path":"/nonexistent/graph.json"}`},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb.mqtt.SimulateMessage("rhasspy/nlu/kitchen/train", []byte(tt.payload))
			waitFor(t, "error", func() bool { return len(tb.mqtt.PublishedTo(TopicError)) == i+1 })

			var msg NluError
			if err := json.Unmarshal(tb.mqtt.PublishedTo(TopicError)[i].Payload, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			wantID := []string{"bad1", "bad2", "bad3"}[i]
			if msg.ID != wantID || msg.SessionID != wantID {
				t.Errorf("error correlation = (%q, %q), want %q", msg.ID, msg.SessionID, wantID)
			}
			if msg.Error == "" {
				t.Error("error text is empty")
			}
			if msg.SiteID != "kitchen" {
				t.Errorf("SiteID = %q, want kitchen", msg.SiteID)
			}

			g, ok := tb.store.Snapshot()
			if !ok {
				t.Fatal("live graph cleared by failed train")
			}
			after, err := nlu.EncodeGraph(g)
			if err != nil {
				t.Fatalf("EncodeGraph() error = %v", err)
			}
			if string(after) != string(beforeData) {
				t.Error("live graph changed by failed train")
			}
		})
	}

	if n := len(tb.mqtt.PublishedTo(TrainSuccessTopic("kitchen"))); n != 0 {
		t.Errorf("published %d train successes, want 0", n)
	}
}

func TestBridge_TrainQueueFull(t *testing.T) {
	trainer := newBlockingTrainer()
	tb := startBridge(t, BridgeOptions{Trainer: trainer, TrainQueueSize: 1})

	send := func(id string) {
		tb.mqtt.SimulateMessage("rhasspy/nlu/default/train", mustJSON(t, map[string]any{
			"id":        id,
			"sentences": lightSentences,
		}))
	}

	send("running")
	select {
	case <-trainer.started:
	case <-time.After(3 * time.Second):
		t.Fatal("first train never started")
	}

	send("queued")
	send("rejected")

	waitFor(t, "queue full error", func() bool { return len(tb.mqtt.PublishedTo(TopicError)) == 1 })

	var msg NluError
	if err := json.Unmarshal(tb.mqtt.PublishedTo(TopicError)[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.ID != "rejected" || msg.Error != ErrQueueFull.Error() {
		t.Errorf("error = %+v, want queue full for rejected", msg)
	}

	close(trainer.release)
	waitFor(t, "two successes", func() bool {
		return len(tb.mqtt.PublishedTo(TrainSuccessTopic("default"))) == 2
	})
}

func TestBridge_StopCancelsTraining(t *testing.T) {
	trainer := newBlockingTrainer()
	tb := startBridge(t, BridgeOptions{Trainer: trainer})

	tb.mqtt.SimulateMessage("rhasspy/nlu/default/train", []byte(`{"id":"t","sentences":{"a":["hello"]}}`))
	<-trainer.started

	tb.Stop()

	if n := len(tb.mqtt.PublishedTo(TopicError)); n != 0 {
		t.Errorf("published %d errors for a cancelled train, want 0", n)
	}
	if n := len(tb.mqtt.PublishedTo(TrainSuccessTopic("default"))); n != 0 {
		t.Errorf("published %d successes for a cancelled train, want 0", n)
	}
	if err := tb.SubmitTrain(NluTrain{ID: "late"}); !errors.Is(err, ErrStopped) {
		t.Errorf("SubmitTrain() after Stop error = %v, want ErrStopped", err)
	}
}

func TestBridge_PersistFailureKeepsNewGraph(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	store := graphstore.New(&graphstore.FilePersister{Path: filepath.Join(blocker, "graph.json")})

	tb := startBridge(t, BridgeOptions{Store: store, WriteGraph: true})

	tb.mqtt.SimulateMessage("rhasspy/nlu/default/train", mustJSON(t, map[string]any{
		"id":        "t",
		"sentences": lightSentences,
	}))
	waitFor(t, "train success", func() bool {
		return len(tb.mqtt.PublishedTo(TrainSuccessTopic("default"))) == 1
	})

	g, ok := store.Snapshot()
	if !ok || len(g.IntentNames()) != 1 {
		t.Fatal("new graph not live after persist failure")
	}
}

func TestBridge_TrainWritesGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	store := graphstore.New(&graphstore.FilePersister{Path: path})

	b, err := NewBridge(BridgeOptions{
		MQTTClient: NewMockMQTTClient(),
		Store:      store,
		Recognizer: nlu.NewRecognizer(),
		Trainer:    nlu.NewTrainer(nlu.TrainerOptions{}),
		WriteGraph: true,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}

	if _, err := b.Train(context.Background(), NluTrain{Sentences: lightSentences}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	loaded, err := graphstore.ReadGraph(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadGraph() error = %v", err)
	}
	if names := loaded.IntentNames(); len(names) != 1 || names[0] != "lights" {
		t.Errorf("persisted intents = %v, want [lights]", names)
	}
}

func TestBridge_TrainFromGraphPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prebuilt.json")
	prebuilt := mustTrain(t, map[string]any{"music": []any{"play music"}})
	if err := (&graphstore.FilePersister{Path: path}).Save(context.Background(), prebuilt); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tb := startBridge(t, BridgeOptions{})
	tb.mqtt.SimulateMessage("rhasspy/nlu/default/train", mustJSON(t, map[string]any{
		"id":         "load",
		"graph_path": path,
		"sentences":  lightSentences,
	}))
	waitFor(t, "train success", func() bool {
		return len(tb.mqtt.PublishedTo(TrainSuccessTopic("default"))) == 1
	})

	g, _ := tb.store.Snapshot()
	if names := g.IntentNames(); len(names) != 1 || names[0] != "music" {
		t.Errorf("live intents = %v, want [music]", names)
	}
}

// =============================================================================
// Connection lifecycle
// =============================================================================

func TestBridge_ReconnectResubscribes(t *testing.T) {
	tb := startBridge(t, BridgeOptions{SiteIDs: []string{"kitchen", "bedroom"}})
	topics := tb.Topics()

	tb.mqtt.SetConnected(false)
	tb.HandleDisconnected(errors.New("connection reset"))
	tb.mqtt.SetConnected(true)
	tb.HandleConnected()

	waitFor(t, "resubscribe", func() bool { return len(tb.mqtt.SubscribeCalls()) == 2*len(topics) })

	counts := make(map[string]int)
	for _, topic := range tb.mqtt.SubscribeCalls() {
		counts[topic]++
	}
	for _, topic := range topics {
		if counts[topic] != 2 {
			t.Errorf("topic %s subscribed %d times, want 2", topic, counts[topic])
		}
	}
	if n := tb.mqtt.HandlerCount(); n != len(topics) {
		t.Errorf("HandlerCount() = %d, want %d", n, len(topics))
	}

	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"hello","siteId":"kitchen"}`))
	waitFor(t, "reply", func() bool { return len(tb.mqtt.PublishedTo(TopicNotRecognized)) == 1 })
	settle()
	if n := len(tb.mqtt.PublishedTo(TopicNotRecognized)); n != 1 {
		t.Errorf("published %d replies for one query, want 1", n)
	}
}

func TestBridge_HealthAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	tb := startBridge(t, BridgeOptions{Metrics: NewMetrics(reg), Version: "1.2.3"})

	topic, payload, err := tb.LastWill()
	if err != nil {
		t.Fatalf("LastWill() error = %v", err)
	}
	if topic != "rhasspy/nlu/nlu-test/health" {
		t.Errorf("LastWill topic = %q", topic)
	}
	var lwt HealthMessage
	if err := json.Unmarshal(payload, &lwt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if lwt.Status != HealthOffline {
		t.Errorf("LWT status = %q, want offline", lwt.Status)
	}

	var msg HealthMessage
	waitFor(t, "degraded health", func() bool {
		for _, p := range tb.mqtt.PublishedTo(topic) {
			if err := json.Unmarshal(p.Payload, &msg); err == nil && msg.Status == HealthDegraded {
				if !p.Retained || p.QoS != 1 {
					t.Errorf("health published qos=%d retained=%v, want 1 retained", p.QoS, p.Retained)
				}
				return true
			}
		}
		return false
	})
	if msg.Version != "1.2.3" || msg.Reason != "no intent graph" {
		t.Errorf("health = %+v, want version 1.2.3 and no graph", msg)
	}

	if _, err := tb.Train(context.Background(), NluTrain{Sentences: lightSentences}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	status := tb.Status()
	if !status.Connected || status.Graph == nil || status.Graph.Intents != 1 {
		t.Errorf("Status() = %+v, want connected with one intent", status)
	}
	if s, _ := tb.health.Status(); s != HealthHealthy {
		t.Errorf("health status = %q, want healthy", s)
	}

	tb.Stop()
	health := tb.mqtt.PublishedTo(topic)
	if err := json.Unmarshal(health[len(health)-1].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Status != HealthStopping {
		t.Errorf("final health = %q, want stopping", msg.Status)
	}
}

func TestBridge_UnknownTopicDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tb := startBridge(t, BridgeOptions{Metrics: metrics})

	_ = tb.handleMessage("hermes/other", []byte(`{}`)) //nolint:errcheck // Always nil
	waitFor(t, "drop", func() bool {
		return testutil.ToFloat64(metrics.dropped.WithLabelValues(DropUnknownTopic)) == 1
	})
}

// =============================================================================
// Topic safety and scope
// =============================================================================

// fixedRecognizer returns the same recognition for every query.
type fixedRecognizer struct {
	intent string
}

func (r fixedRecognizer) Recognize(_ context.Context, _ *nlu.Graph, q nlu.Query) (*nlu.Recognition, error) {
	return &nlu.Recognition{Intent: r.intent, Confidence: 1, Text: q.Text, RawText: q.Text}, nil
}

func TestBridge_UnpublishableIntentIsNotRecognized(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tb := startBridge(t, BridgeOptions{Recognizer: fixedRecognizer{intent: "lights+"}, Metrics: metrics})
	tb.store.Replace(mustTrain(t, lightSentences))

	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","id":"q"}`))
	waitFor(t, "not recognized", func() bool { return len(tb.mqtt.PublishedTo(TopicNotRecognized)) == 1 })

	var msg NluIntentNotRecognized
	if err := json.Unmarshal(tb.mqtt.PublishedTo(TopicNotRecognized)[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.ID != "q" {
		t.Errorf("id = %q, want q", msg.ID)
	}
	if got := testutil.ToFloat64(metrics.publishErrors); got != 0 {
		t.Errorf("publish errors = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.queries.WithLabelValues(ResultFault)); got != 1 {
		t.Errorf("fault queries = %v, want 1", got)
	}
}

func TestBridge_TrainRejectsTopicUnsafeIntentNames(t *testing.T) {
	tb := startBridge(t, BridgeOptions{SiteIDs: []string{"kitchen"}})
	tb.store.Replace(mustTrain(t, lightSentences))

	tb.mqtt.SimulateMessage("rhasspy/nlu/kitchen/train", mustJSON(t, map[string]any{
		"id":        "bad",
		"sentences": map[string]any{"lights+": []any{"turn on the light"}},
	}))
	waitFor(t, "train error", func() bool { return len(tb.mqtt.PublishedTo(TopicError)) == 1 })

	var msg NluError
	if err := json.Unmarshal(tb.mqtt.PublishedTo(TopicError)[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.ID != "bad" || msg.SiteID != "kitchen" {
		t.Errorf("error = %+v, want id bad for kitchen", msg)
	}
	if n := len(tb.mqtt.PublishedTo(TrainSuccessTopic("kitchen"))); n != 0 {
		t.Errorf("published %d successes, want 0", n)
	}

	// The previous graph still answers.
	tb.mqtt.SimulateMessage(TopicQuery, []byte(`{"input":"turn on the light","siteId":"kitchen"}`))
	waitFor(t, "lights intent", func() bool { return len(tb.mqtt.PublishedTo(IntentTopic("lights"))) == 1 })
}

func TestBridge_SubmitTrainChecksSite(t *testing.T) {
	tb := startBridge(t, BridgeOptions{SiteIDs: []string{"kitchen"}})
	before := mustTrain(t, lightSentences)
	tb.store.Replace(before)

	tests := []struct {
		site    string
		wantErr error
	}{
		{"bedroom", ErrScopeMismatch},
		{"+", ErrInvalidSite},
		{"#", ErrInvalidSite},
		{"kitchen/extra", ErrInvalidSite},
	}
	for _, tt := range tests {
		t.Run(tt.site, func(t *testing.T) {
			err := tb.SubmitTrain(NluTrain{ID: "t", SiteID: tt.site, Sentences: map[string]any{"other": []any{"hello"}}})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SubmitTrain() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := tb.Train(context.Background(), NluTrain{ID: "t", SiteID: "bedroom", Sentences: map[string]any{"other": []any{"hello"}}}); !errors.Is(err, ErrScopeMismatch) {
		t.Errorf("Train() error = %v, want ErrScopeMismatch", err)
	}

	settle()
	if got, _ := tb.store.Snapshot(); got != before {
		t.Error("graph replaced by a rejected train")
	}
	if n := len(tb.mqtt.Replies()); n != 0 {
		t.Errorf("published %d replies for rejected trains, want 0", n)
	}

	// The site in scope is accepted.
	if err := tb.SubmitTrain(NluTrain{ID: "ok", SiteID: "kitchen", Sentences: lightSentences}); err != nil {
		t.Fatalf("SubmitTrain() error = %v", err)
	}
	waitFor(t, "kitchen success", func() bool { return len(tb.mqtt.PublishedTo(TrainSuccessTopic("kitchen"))) == 1 })
}

func TestNewBridge_RejectsInvalidSiteIDs(t *testing.T) {
	_, err := NewBridge(BridgeOptions{
		MQTTClient: NewMockMQTTClient(),
		Store:      graphstore.New(nil),
		Recognizer: nlu.NewRecognizer(),
		Trainer:    nlu.NewTrainer(nlu.TrainerOptions{}),
		SiteIDs:    []string{"kitchen", "a/b"},
	})
	if !errors.Is(err, ErrInvalidSite) {
		t.Errorf("NewBridge() error = %v, want ErrInvalidSite", err)
	}
}

func TestBridge_DropsTopicsOutsideFilters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tb := startBridge(t, BridgeOptions{SiteIDs: []string{"kitchen"}, Metrics: metrics})

	_ = tb.handleMessage("rhasspy/nlu/bedroom/train", []byte(`{"sentences":{"a":["hi"]}}`)) //nolint:errcheck // Always nil
	waitFor(t, "drop", func() bool {
		return testutil.ToFloat64(metrics.dropped.WithLabelValues(DropUnknownTopic)) == 1
	})
	settle()
	if n := len(tb.mqtt.Replies()); n != 0 {
		t.Errorf("published %d replies, want 0", n)
	}
}

func TestBridge_StopUnsubscribes(t *testing.T) {
	tb := startBridge(t, BridgeOptions{SiteIDs: []string{"kitchen", "bedroom"}})

	tb.Stop()

	got := tb.mqtt.UnsubscribeCalls()
	if strings.Join(got, ",") != strings.Join(tb.Topics(), ",") {
		t.Errorf("unsubscribed %v, want %v", got, tb.Topics())
	}
	if n := tb.mqtt.HandlerCount(); n != 0 {
		t.Errorf("%d handlers left after Stop, want 0", n)
	}
}
