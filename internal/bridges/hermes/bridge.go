package hermes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/nlu-hermes/internal/graphstore"
	"github.com/nerrad567/nlu-hermes/internal/infrastructure/mqtt"
	"github.com/nerrad567/nlu-hermes/internal/nlu"
	"github.com/nerrad567/nlu-hermes/internal/transform"
)

// Bridge operation constants.
const (
	// eventBufferSize bounds events waiting for the dispatch loop.
	eventBufferSize = 256

	// DefaultTrainQueueSize is how many train requests may wait behind
	// the running one.
	DefaultTrainQueueSize = 4
)

// Bridge connects the NLU engine to the Hermes bus.
// It handles:
//   - (Re)subscribing to the query and train topics on every connection
//   - Decoding and scoping inbound messages
//   - Recognising queries against the live graph
//   - Training on a single worker and swapping in the result
//   - Health reporting and graceful shutdown
//
// Connection and message callbacks only post events; one loop goroutine
// handles them in arrival order and one worker runs trains serially.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt       MQTTClient
	store      GraphStore
	recognizer Recognizer
	trainer    Trainer
	telemetry  Telemetry
	loadGraph  GraphLoader
	metrics    *Metrics
	health     *HealthReporter

	// Scope, computed once.
	siteIDs []string
	sites   map[string]struct{}
	topics  []string

	transform         transform.Func
	transformTraining bool
	fuzzy             bool
	writeGraph        bool
	qos               byte

	events chan event
	trains chan NluTrain

	// trainMu keeps at most one training run in flight, including
	// synchronous runs through Train.
	trainMu sync.Mutex

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	cancelMu  sync.Mutex

	logger Logger
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic filter. Subscribing to the
	// same filter again replaces the previous handler.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a topic filter.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// GraphStore owns the live intent graph.
// This interface is satisfied by *graphstore.Store.
type GraphStore interface {
	Snapshot() (*nlu.Graph, bool)
	Replace(g *nlu.Graph)
	CanPersist() bool
	Persist(ctx context.Context, g *nlu.Graph) error
}

// Recognizer matches text against a graph.
// This interface is satisfied by *nlu.Recognizer.
type Recognizer interface {
	Recognize(ctx context.Context, g *nlu.Graph, q nlu.Query) (*nlu.Recognition, error)
}

// Trainer builds a graph from sentence templates.
// This interface is satisfied by *nlu.Trainer.
type Trainer interface {
	Train(ctx context.Context, input nlu.TrainInput) (*nlu.Graph, error)
}

// Telemetry receives one point per query and per training run.
// This interface is satisfied by *influxdb.Client.
type Telemetry interface {
	WriteQuery(siteID, intent string, recognized bool, confidence float64, latency time.Duration)
	WriteTrain(siteID string, success bool, intents, sentences int, duration time.Duration)
}

// GraphLoader reads a prebuilt graph named by a train request's graph_path.
type GraphLoader func(ctx context.Context, path string) (*nlu.Graph, error)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the broker session. Required.
	MQTTClient MQTTClient

	// Store holds the live graph. Required.
	Store GraphStore

	// Recognizer and Trainer are the NLU engine. Required.
	Recognizer Recognizer
	Trainer    Trainer

	// SiteIDs restricts the bridge to these sites. Empty answers all sites.
	SiteIDs []string

	// Transform canonicalises query words before matching. Nil is identity.
	Transform transform.Func

	// TransformTraining also applies Transform to training templates.
	TransformTraining bool

	// Fuzzy enables fuzzy recognition.
	Fuzzy bool

	// WriteGraph persists each trained graph through the store.
	WriteGraph bool

	// TrainQueueSize is the number of train requests that may wait.
	// Zero uses DefaultTrainQueueSize.
	TrainQueueSize int

	// QoS is used for subscriptions and results.
	QoS byte

	// ClientID names this instance in health messages and the health topic.
	ClientID string

	// Version is reported in health messages.
	Version string

	// HealthInterval is the retained health publish period.
	HealthInterval time.Duration

	// LoadGraph reads graph_path requests. Nil uses graphstore.ReadGraph.
	LoadGraph GraphLoader

	// Logger, Metrics and Telemetry are optional.
	Logger    Logger
	Metrics   *Metrics
	Telemetry Telemetry
}

// eventKind identifies what the dispatch loop should do.
type eventKind int

const (
	eventConnected eventKind = iota
	eventDisconnected
	eventMessage
)

// event is one unit of work for the dispatch loop.
type event struct {
	kind    eventKind
	topic   string
	payload []byte
	err     error
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation, then connect the MQTT client with
// HandleConnected and HandleDisconnected as its callbacks.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	switch {
	case opts.MQTTClient == nil:
		return nil, fmt.Errorf("%w: MQTT client", ErrMissingDependency)
	case opts.Store == nil:
		return nil, fmt.Errorf("%w: graph store", ErrMissingDependency)
	case opts.Recognizer == nil:
		return nil, fmt.Errorf("%w: recognizer", ErrMissingDependency)
	case opts.Trainer == nil:
		return nil, fmt.Errorf("%w: trainer", ErrMissingDependency)
	}
	if opts.QoS > 2 {
		return nil, mqtt.ErrInvalidQoS
	}

	queueSize := opts.TrainQueueSize
	if queueSize <= 0 {
		queueSize = DefaultTrainQueueSize
	}

	tf := opts.Transform
	if tf == nil {
		tf = transform.Identity
	}

	loadGraph := opts.LoadGraph
	if loadGraph == nil {
		loadGraph = graphstore.ReadGraph
	}

	b := &Bridge{
		mqtt:              opts.MQTTClient,
		store:             opts.Store,
		recognizer:        opts.Recognizer,
		trainer:           opts.Trainer,
		telemetry:         opts.Telemetry,
		loadGraph:         loadGraph,
		metrics:           opts.Metrics,
		transform:         tf,
		transformTraining: opts.TransformTraining,
		fuzzy:             opts.Fuzzy,
		writeGraph:        opts.WriteGraph,
		qos:               opts.QoS,
		events:            make(chan event, eventBufferSize),
		trains:            make(chan NluTrain, queueSize),
		done:              make(chan struct{}),
		logger:            opts.Logger,
	}

	for _, id := range opts.SiteIDs {
		if err := ValidateSiteID(id); err != nil {
			return nil, err
		}
	}
	b.siteIDs, b.sites = siteFilter(opts.SiteIDs)
	b.topics = subscriptionTopics(b.siteIDs)

	b.health = NewHealthReporter(HealthReporterConfig{
		ClientID:  opts.ClientID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		SiteIDs:   b.siteIDs,
		Graph:     b.graphInfo,
		Stats:     b.metrics.Snapshot,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// siteFilter deduplicates and sorts site ids and builds the membership set.
func siteFilter(ids []string) ([]string, map[string]struct{}) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(set))
	for id := range set {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	return sorted, set
}

// subscriptionTopics is the query topic plus one train topic per site,
// or the wildcard train topic when every site is handled.
func subscriptionTopics(siteIDs []string) []string {
	topics := []string{TopicQuery}
	if len(siteIDs) == 0 {
		return append(topics, TrainTopic(mqtt.SingleLevelWildcard))
	}
	for _, id := range siteIDs {
		topics = append(topics, TrainTopic(id))
	}
	return topics
}

// Topics returns the topic filters subscribed on every connection.
func (b *Bridge) Topics() []string {
	return append([]string(nil), b.topics...)
}

// Start launches the dispatch loop, the train worker and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	started := false
	b.startOnce.Do(func() {
		started = true

		loopCtx, cancel := context.WithCancel(ctx)
		b.cancelMu.Lock()
		b.cancel = cancel
		b.cancelMu.Unlock()

		b.wg.Add(2)
		go b.run(loopCtx)
		go b.trainLoop(loopCtx)

		if err := b.health.PublishStarting(); err != nil {
			b.logWarn("failed to publish starting status", "error", err)
		}
		b.health.Start(loopCtx)
	})
	if !started {
		return fmt.Errorf("hermes: bridge already started")
	}

	b.logInfo("bridge started",
		"topics", b.topics,
		"site_ids", b.siteIDs,
		"fuzzy", b.fuzzy)
	return nil
}

// Stop gracefully shuts down the bridge. A training run in progress is
// cancelled and its result is not published.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		b.cancelMu.Lock()
		if b.cancel != nil {
			b.cancel()
		}
		b.cancelMu.Unlock()

		b.wg.Wait()

		if b.mqtt.IsConnected() {
			for _, topic := range b.topics {
				if err := b.mqtt.Unsubscribe(topic); err != nil {
					b.logWarn("failed to unsubscribe", "topic", topic, "error", err)
				}
			}
		}

		// Publishes "stopping" status
		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// HandleConnected is the MQTT on-connect callback.
func (b *Bridge) HandleConnected() {
	b.post(event{kind: eventConnected})
}

// HandleDisconnected is the MQTT connection-lost callback.
func (b *Bridge) HandleDisconnected(err error) {
	b.post(event{kind: eventDisconnected, err: err})
}

// handleMessage is the MQTT handler for every subscribed topic.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	b.post(event{kind: eventMessage, topic: topic, payload: payload})
	return nil
}

// post hands an event to the dispatch loop, giving up once stopped.
func (b *Bridge) post(ev event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// run is the dispatch loop.
func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case ev := <-b.events:
			switch ev.kind {
			case eventConnected:
				b.onConnected()
			case eventDisconnected:
				b.onDisconnected(ev.err)
			case eventMessage:
				b.dispatch(ctx, ev.topic, ev.payload)
			}
		}
	}
}

// onConnected issues the subscription set. The session is clean, so this
// runs on every connection.
func (b *Bridge) onConnected() {
	b.metrics.setConnected(true)

	for _, topic := range b.topics {
		if err := b.mqtt.Subscribe(topic, b.qos, b.handleMessage); err != nil {
			b.logError("failed to subscribe", "topic", topic, "error", err)
			continue
		}
		b.logDebug("subscribed", "topic", topic)
	}
	b.logInfo("connected, subscriptions issued", "count", len(b.topics))

	if err := b.health.PublishNow(); err != nil {
		b.logWarn("failed to publish health", "error", err)
	}
}

func (b *Bridge) onDisconnected(err error) {
	b.metrics.setConnected(false)
	b.logWarn("disconnected from broker", "error", err)
}

// dispatch routes one inbound message by topic. Messages that match none
// of the bridge's filters are dropped.
func (b *Bridge) dispatch(ctx context.Context, topic string, payload []byte) {
	if !b.subscribed(topic) {
		b.metrics.drop(DropUnknownTopic)
		b.logDebug("dropping message", "topic", topic, "error", ErrUnknownTopic)
		return
	}

	if topic == TopicQuery {
		b.handleQuery(ctx, payload)
		return
	}
	if site, ok := SiteFromTrainTopic(topic); ok {
		b.handleTrain(site, payload)
		return
	}

	b.metrics.drop(DropUnknownTopic)
	b.logDebug("dropping message", "topic", topic, "error", ErrUnknownTopic)
}

// subscribed reports whether topic matches one of the bridge's filters.
func (b *Bridge) subscribed(topic string) bool {
	for _, filter := range b.topics {
		if mqtt.MatchTopic(filter, topic) {
			return true
		}
	}
	return false
}

// inScope reports whether a message for siteID is addressed to this bridge.
// Messages without a site id are always in scope.
func (b *Bridge) inScope(siteID string) bool {
	if len(b.sites) == 0 || siteID == "" {
		return true
	}
	_, ok := b.sites[siteID]
	return ok
}

// handleQuery recognises one query and publishes exactly one result.
func (b *Bridge) handleQuery(ctx context.Context, payload []byte) {
	var q NluQuery
	if err := decode(payload, &q, "input"); err != nil {
		b.metrics.drop(DropDecodeError)
		b.logWarn("dropping malformed query", "error", err)
		return
	}
	if !b.inScope(q.SiteID) {
		b.metrics.drop(DropScopeMismatch)
		b.logDebug("ignoring query", "site_id", q.SiteID, "reason", ErrScopeMismatch)
		return
	}

	start := time.Now()
	rec, err := b.recognize(ctx, q)
	latency := time.Since(start)
	siteID := siteOrDefault(q.SiteID)

	// An intent whose name cannot be published would leave the query
	// without a reply.
	if err == nil {
		if verr := mqtt.ValidatePublishTopic(IntentTopic(rec.Intent)); verr != nil {
			rec, err = nil, fmt.Errorf("intent %q: %w", rec.Intent, verr)
		}
	}

	switch {
	case err == nil:
		b.metrics.observeQuery(ResultRecognized, latency)
		b.writeQuery(siteID, rec.Intent, true, rec.Confidence, latency)
		b.logDebug("recognized",
			"id", q.ID,
			"intent", rec.Intent,
			"confidence", rec.Confidence)
		b.publish(IntentTopic(rec.Intent), NewNluIntent(q, rec))

	case errors.Is(err, nlu.ErrNotRecognized):
		b.metrics.observeQuery(ResultNotRecognized, latency)
		b.writeQuery(siteID, "", false, 0, latency)
		b.logDebug("not recognized", "id", q.ID, "input", q.Input)
		b.publish(TopicNotRecognized, NewNotRecognized(q))

	default:
		b.metrics.observeQuery(ResultFault, latency)
		b.writeQuery(siteID, "", false, 0, latency)
		b.logError("recognition failed", "id", q.ID, "error", err)
		b.publish(TopicNotRecognized, NewNotRecognized(q))
	}
}

// recognize runs the recognizer against the current snapshot. A missing
// graph is reported as ErrNotRecognized; a recognizer panic is an error.
func (b *Bridge) recognize(ctx context.Context, q NluQuery) (rec *nlu.Recognition, err error) {
	g, ok := b.store.Snapshot()
	if !ok {
		return nil, nlu.ErrNotRecognized
	}

	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("recognizer panic: %v", r)
		}
	}()

	return b.recognizer.Recognize(ctx, g, nlu.Query{
		Text:         q.Input,
		Transform:    b.transform,
		IntentFilter: q.IntentFilter,
		Fuzzy:        b.fuzzy,
	})
}

// handleTrain decodes a train request and queues it.
func (b *Bridge) handleTrain(siteID string, payload []byte) {
	var req NluTrain
	if err := decode(payload, &req); err != nil {
		b.metrics.drop(DropDecodeError)
		b.logWarn("dropping malformed train request", "site_id", siteID, "error", err)
		return
	}
	req.SiteID = siteID

	if !b.inScope(siteID) {
		b.metrics.drop(DropScopeMismatch)
		b.logDebug("ignoring train request", "site_id", siteID, "reason", ErrScopeMismatch)
		return
	}

	if err := b.SubmitTrain(req); err != nil {
		b.logWarn("rejecting train request", "id", req.ID, "site_id", siteID, "error", err)
		if errors.Is(err, ErrQueueFull) {
			b.publish(TopicError, NewTrainError(req, err))
		}
	}
}

// SubmitTrain queues a train request for the worker. It returns
// ErrInvalidSite or ErrScopeMismatch when the result could not be
// published for req.SiteID, ErrQueueFull when the queue is at capacity and
// ErrStopped after Stop. The result is published like any bus request.
func (b *Bridge) SubmitTrain(req NluTrain) error {
	if err := b.checkTrainSite(req.SiteID); err != nil {
		return err
	}

	select {
	case <-b.done:
		return ErrStopped
	default:
	}

	select {
	case b.trains <- req:
		b.metrics.setQueueLength(len(b.trains))
		return nil
	default:
		return ErrQueueFull
	}
}

// checkTrainSite rejects train requests whose site is not a valid topic
// level or lies outside the site filter.
func (b *Bridge) checkTrainSite(siteID string) error {
	if err := ValidateSiteID(siteID); err != nil {
		return err
	}
	if !b.inScope(siteID) {
		return fmt.Errorf("%w: %q", ErrScopeMismatch, siteID)
	}
	return nil
}

// trainLoop is the single train worker.
func (b *Bridge) trainLoop(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case req := <-b.trains:
			b.metrics.setQueueLength(len(b.trains))
			b.runTrain(ctx, req)
		}
	}
}

// runTrain trains, then publishes the outcome. A disconnect during
// training does not abort it; the result publish is attempted anyway and
// dropped with a warning if the session is still down.
func (b *Bridge) runTrain(ctx context.Context, req NluTrain) {
	siteID := siteOrDefault(req.SiteID)
	start := time.Now()

	g, err := b.Train(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			b.logInfo("training cancelled by shutdown", "id", req.ID)
			return
		}
		b.metrics.observeTrain(false, elapsed)
		b.writeTrain(siteID, false, nil, elapsed)
		b.logError("training failed", "id", req.ID, "site_id", siteID, "error", err)
		b.publish(TopicError, NewTrainError(req, err))
		return
	}

	b.metrics.observeTrain(true, elapsed)
	b.writeTrain(siteID, true, g, elapsed)
	b.publish(TrainSuccessTopic(siteID), NluTrainSuccess{ID: req.ID, SiteID: siteID})

	if err := b.health.PublishNow(); err != nil {
		b.logWarn("failed to publish health", "error", err)
	}
}

// Train builds or loads the graph for req, makes it live and persists it
// when write-back is enabled. It runs synchronously and publishes nothing;
// the bridge's worker uses it for bus requests and startup uses it for
// sentence files. On error the live graph is untouched.
//
// A non-empty GraphPath loads that graph instead of training, and such a
// graph is not written back.
func (b *Bridge) Train(ctx context.Context, req NluTrain) (*nlu.Graph, error) {
	if err := b.checkTrainSite(req.SiteID); err != nil {
		return nil, err
	}

	b.trainMu.Lock()
	defer b.trainMu.Unlock()

	g, err := b.buildGraph(ctx, req)
	if err != nil {
		return nil, err
	}

	b.store.Replace(g)
	info := NewGraphInfo(g)
	b.metrics.setGraph(info)
	b.logInfo("intent graph replaced",
		"id", req.ID,
		"intents", info.Intents,
		"sentences", info.Sentences)

	if b.writeGraph && req.GraphPath == "" && b.store.CanPersist() {
		if err := b.store.Persist(ctx, g); err != nil {
			b.logError("failed to persist intent graph, keeping it in memory", "error", err)
		}
	}

	return g, nil
}

// buildGraph loads or trains a graph, turning a trainer panic into an error.
func (b *Bridge) buildGraph(ctx context.Context, req NluTrain) (g *nlu.Graph, err error) {
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("trainer panic: %v", r)
		}
	}()

	if req.GraphPath != "" {
		g, err = b.loadGraph(ctx, req.GraphPath)
		if err != nil {
			return nil, fmt.Errorf("loading graph %s: %w", req.GraphPath, err)
		}
		return g, nil
	}

	input := nlu.TrainInput{Sentences: req.Sentences}
	if b.transformTraining {
		input.Transform = b.transform
	}
	return b.trainer.Train(ctx, input)
}

// Status is a point-in-time view of the bridge for the HTTP API.
type Status struct {
	Connected  bool       `json:"connected"`
	SiteIDs    []string   `json:"site_ids"`
	Topics     []string   `json:"topics"`
	Graph      *GraphInfo `json:"graph,omitempty"`
	TrainQueue int        `json:"train_queue"`
	Statistics Statistics `json:"statistics"`
}

// Status returns the current bridge status.
func (b *Bridge) Status() Status {
	return Status{
		Connected:  b.mqtt.IsConnected(),
		SiteIDs:    append([]string{}, b.siteIDs...),
		Topics:     b.Topics(),
		Graph:      b.graphInfo(),
		TrainQueue: len(b.trains),
		Statistics: b.metrics.Snapshot(),
	}
}

// LastWill returns the health topic and the offline payload to register
// as the MQTT Last Will before connecting.
func (b *Bridge) LastWill() (string, []byte, error) {
	payload, err := b.health.LWTPayload()
	if err != nil {
		return "", nil, err
	}
	return b.health.Topic(), payload, nil
}

func (b *Bridge) graphInfo() *GraphInfo {
	g, ok := b.store.Snapshot()
	if !ok {
		return nil
	}
	return NewGraphInfo(g)
}

// decode unmarshals a JSON object into v. Non-objects and objects missing
// a required key fail with ErrDecode.
func decode(payload []byte, v any, required ...string) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: not a JSON object", ErrDecode)
	}

	if len(required) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}
		for _, key := range required {
			if _, ok := fields[key]; !ok {
				return fmt.Errorf("%w: missing %q", ErrDecode, key)
			}
		}
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// publish marshals v and publishes it. Failures are logged and dropped.
func (b *Bridge) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", "topic", topic, "error", err)
		return
	}

	if err := b.mqtt.Publish(topic, payload, b.qos, false); err != nil {
		b.metrics.publishFailed()
		b.logWarn("dropping message, publish failed", "topic", topic, "error", err)
	}
}

func (b *Bridge) writeQuery(siteID, intent string, recognized bool, confidence float64, latency time.Duration) {
	if b.telemetry != nil {
		b.telemetry.WriteQuery(siteID, intent, recognized, confidence, latency)
	}
}

func (b *Bridge) writeTrain(siteID string, success bool, g *nlu.Graph, d time.Duration) {
	if b.telemetry == nil {
		return
	}
	var intents, sentences int
	if info := NewGraphInfo(g); info != nil {
		intents, sentences = info.Intents, info.Sentences
	}
	b.telemetry.WriteTrain(siteID, success, intents, sentences, d)
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Error(msg, keysAndValues...)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}
