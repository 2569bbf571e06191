package hermes

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/nlu-hermes/internal/infrastructure/mqtt"
	"github.com/nerrad567/nlu-hermes/internal/nlu"
)

// Hermes NLU payloads. Field names follow the Hermes protocol (camelCase)
// except NluTrain.GraphPath, which Rhasspy sends as graph_path.

// DefaultSiteID is assumed when a query carries no siteId.
const DefaultSiteID = "default"

// NluQuery asks for the intent of a sentence.
// Topic: hermes/nlu/query
type NluQuery struct {
	// Input is the text to recognise.
	Input string `json:"input"`

	// SiteID is the device the text came from.
	SiteID string `json:"siteId,omitempty"`

	// ID correlates the result with this query.
	ID string `json:"id,omitempty"`

	// IntentFilter restricts recognition to these intent names.
	IntentFilter []string `json:"intentFilter,omitempty"`

	SessionID  string  `json:"sessionId,omitempty"`
	CustomData *string `json:"customData,omitempty"`
	Lang       string  `json:"lang,omitempty"`
	WakewordID string  `json:"wakewordId,omitempty"`
}

// Intent names the recognised intent.
type Intent struct {
	IntentName      string  `json:"intentName"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// SlotValue is the typed value of a slot. The built-in engine only
// produces "Unknown" (free text) values.
type SlotValue struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// SlotRange locates a slot in the recognised and the raw input, in
// character offsets.
type SlotRange struct {
	Start    int `json:"start"`
	End      int `json:"end"`
	RawStart int `json:"rawStart"`
	RawEnd   int `json:"rawEnd"`
}

// Slot is a named entity extracted from the input.
type Slot struct {
	Entity     string     `json:"entity"`
	SlotName   string     `json:"slotName"`
	Value      SlotValue  `json:"value"`
	RawValue   string     `json:"rawValue"`
	Confidence float64    `json:"confidence"`
	Range      *SlotRange `json:"range,omitempty"`
}

// NluIntent is published when a query is recognised.
// Topic: hermes/intent/{intentName}
type NluIntent struct {
	// Input is the recognised sentence with substitutions applied.
	Input string `json:"input"`

	// RawInput is the query text exactly as received.
	RawInput string `json:"rawInput"`

	Intent     Intent  `json:"intent"`
	Slots      []Slot  `json:"slots"`
	SiteID     string  `json:"siteId"`
	ID         string  `json:"id,omitempty"`
	SessionID  string  `json:"sessionId,omitempty"`
	CustomData *string `json:"customData,omitempty"`
	Lang       string  `json:"lang,omitempty"`
	WakewordID string  `json:"wakewordId,omitempty"`
}

// NluIntentNotRecognized is published when no intent matches.
// Topic: hermes/nlu/intentNotRecognized
type NluIntentNotRecognized struct {
	Input      string  `json:"input"`
	SiteID     string  `json:"siteId"`
	ID         string  `json:"id,omitempty"`
	SessionID  string  `json:"sessionId,omitempty"`
	CustomData *string `json:"customData,omitempty"`
}

// NluError reports a failed request.
// Topic: hermes/error/nlu
type NluError struct {
	Error     string `json:"error"`
	Context   string `json:"context,omitempty"`
	SiteID    string `json:"siteId"`
	SessionID string `json:"sessionId,omitempty"`

	// ID echoes the failed request's id.
	ID string `json:"id,omitempty"`
}

// NluTrain asks the bridge to rebuild its intent graph.
// Topic: rhasspy/nlu/{siteId}/train
type NluTrain struct {
	ID string `json:"id,omitempty"`

	// Sentences maps a source name to an ini document (string) or to a
	// list of templates for the intent of that name.
	Sentences map[string]any `json:"sentences,omitempty"`

	// GraphPath names a prebuilt graph to load instead of training.
	GraphPath string `json:"graph_path,omitempty"`

	// SiteID is taken from the topic, not the payload.
	SiteID string `json:"-"`
}

// NluTrainSuccess is published after the new graph is live.
// Topic: rhasspy/nlu/{siteId}/trainSuccess
type NluTrainSuccess struct {
	ID     string `json:"id,omitempty"`
	SiteID string `json:"siteId"`
}

// siteOrDefault returns the site id, substituting DefaultSiteID for "".
func siteOrDefault(siteID string) string {
	if siteID == "" {
		return DefaultSiteID
	}
	return siteID
}

// NewNluIntent builds the recognised result for query q.
func NewNluIntent(q NluQuery, r *nlu.Recognition) NluIntent {
	slots := make([]Slot, 0, len(r.Slots))
	for _, s := range r.Slots {
		slots = append(slots, Slot{
			Entity:     s.Entity,
			SlotName:   s.Name,
			Value:      SlotValue{Kind: "Unknown", Value: s.Value},
			RawValue:   s.Raw,
			Confidence: s.Confidence,
			Range: &SlotRange{
				Start:    s.Start,
				End:      s.End,
				RawStart: s.RawStart,
				RawEnd:   s.RawEnd,
			},
		})
	}

	return NluIntent{
		Input:    r.Text,
		RawInput: q.Input,
		Intent: Intent{
			IntentName:      r.Intent,
			ConfidenceScore: r.Confidence,
		},
		Slots:      slots,
		SiteID:     siteOrDefault(q.SiteID),
		ID:         q.ID,
		SessionID:  q.SessionID,
		CustomData: q.CustomData,
		Lang:       q.Lang,
		WakewordID: q.WakewordID,
	}
}

// NewNotRecognized builds the negative result for query q.
func NewNotRecognized(q NluQuery) NluIntentNotRecognized {
	return NluIntentNotRecognized{
		Input:      q.Input,
		SiteID:     siteOrDefault(q.SiteID),
		ID:         q.ID,
		SessionID:  q.SessionID,
		CustomData: q.CustomData,
	}
}

// NewTrainError builds the error result for a failed train request. The
// request id is carried in id, sessionId and context so Rhasspy clients
// that correlate on any of them find it.
func NewTrainError(req NluTrain, err error) NluError {
	return NluError{
		Error:     err.Error(),
		Context:   req.ID,
		SiteID:    siteOrDefault(req.SiteID),
		SessionID: req.ID,
		ID:        req.ID,
	}
}

// Topic helpers

const (
	// TopicQuery carries NluQuery for every site.
	TopicQuery = "hermes/nlu/query"

	// TopicNotRecognized carries NluIntentNotRecognized.
	TopicNotRecognized = "hermes/nlu/intentNotRecognized"

	// TopicError carries NluError.
	TopicError = "hermes/error/nlu"

	// TopicIntentPrefix prefixes NluIntent topics.
	TopicIntentPrefix = "hermes/intent/"

	// topicNLUPrefix prefixes the Rhasspy NLU train and health topics.
	topicNLUPrefix = "rhasspy/nlu/"

	// trainTopicSiteLevel is the index of the site level in a train topic.
	trainTopicSiteLevel = 2
)

// IntentTopic returns the topic for a recognised intent.
// Example: hermes/intent/ChangeLightState
func IntentTopic(intentName string) string {
	return TopicIntentPrefix + intentName
}

// TrainTopic returns the train request topic for a site, or the wildcard
// filter when siteID is "+".
// Example: rhasspy/nlu/kitchen/train
func TrainTopic(siteID string) string {
	return fmt.Sprintf("%s%s/train", topicNLUPrefix, siteID)
}

// TrainSuccessTopic returns the topic for a successful train.
// Example: rhasspy/nlu/kitchen/trainSuccess
func TrainSuccessTopic(siteID string) string {
	return fmt.Sprintf("%s%s/trainSuccess", topicNLUPrefix, siteID)
}

// HealthTopic returns the retained health topic of a bridge instance.
// Example: rhasspy/nlu/nlu-hermes-1a2b/health
func HealthTopic(clientID string) string {
	return fmt.Sprintf("%s%s/health", topicNLUPrefix, clientID)
}

// ValidateSiteID checks that siteID can fill one topic level. The empty
// site id is valid and stands for the default site.
func ValidateSiteID(siteID string) error {
	if strings.ContainsAny(siteID, "/+#\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidSite, siteID)
	}
	return nil
}

// SiteFromTrainTopic extracts the site id from a train topic.
func SiteFromTrainTopic(topic string) (string, bool) {
	if !mqtt.MatchTopic(TrainTopic(mqtt.SingleLevelWildcard), topic) {
		return "", false
	}
	site := mqtt.TopicLevel(topic, trainTopicSiteLevel)
	return site, site != ""
}

// Health

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is connected and has a graph.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge runs but cannot recognise anything
	// or is disconnected.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is gone (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: rhasspy/nlu/{clientId}/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	SiteIDs       []string     `json:"site_ids,omitempty"`
	Graph         *GraphInfo   `json:"graph,omitempty"`
	Statistics    *Statistics  `json:"statistics,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// GraphInfo describes the live intent graph.
type GraphInfo struct {
	Intents   int       `json:"intents"`
	Sentences int       `json:"sentences"`
	CreatedAt time.Time `json:"created_at"`
}

// NewGraphInfo summarises g, or returns nil when there is no graph.
func NewGraphInfo(g *nlu.Graph) *GraphInfo {
	if g == nil {
		return nil
	}
	return &GraphInfo{
		Intents:   len(g.IntentNames()),
		Sentences: g.SentenceCount(),
		CreatedAt: g.CreatedAt(),
	}
}

// Statistics are counters since process start.
type Statistics struct {
	Queries       uint64 `json:"queries"`
	Recognized    uint64 `json:"recognized"`
	NotRecognized uint64 `json:"not_recognized"`
	Trains        uint64 `json:"trains"`
	TrainErrors   uint64 `json:"train_errors"`
	Dropped       uint64 `json:"dropped"`
}

// NewLWTMessage creates the Last Will published by the broker if the
// bridge disconnects unexpectedly.
func NewLWTMessage(clientID string) HealthMessage {
	return HealthMessage{
		Bridge:    clientID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}
