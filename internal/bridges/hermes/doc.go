// Package hermes connects the NLU engine to a Hermes MQTT bus.
//
// The bridge subscribes to hermes/nlu/query and to the Rhasspy train topic
// of each handled site, answers every in-scope query with exactly one
// result and rebuilds the intent graph on request.
//
// Message flow:
//
//	hermes/nlu/query           → recognise → hermes/intent/{intent}
//	                                       → hermes/nlu/intentNotRecognized
//	rhasspy/nlu/{site}/train   → train     → rhasspy/nlu/{site}/trainSuccess
//	                                       → hermes/error/nlu
//
// Queries are answered on the dispatch loop against an immutable graph
// snapshot. Trains run one at a time on a worker behind a bounded queue;
// a request that finds the queue full is answered with an error straight
// away. A graph only becomes live once training has fully succeeded.
//
// The broker session is clean, so the bridge re-issues its subscriptions
// on every connection. Health is published retained to
// rhasspy/nlu/{clientId}/health, with an "offline" Last Will.
//
// Usage:
//
//	bridge, err := hermes.NewBridge(hermes.BridgeOptions{
//	    MQTTClient: mqttClient,
//	    Store:      store,
//	    Recognizer: nlu.NewRecognizer(),
//	    Trainer:    nlu.NewTrainer(nlu.TrainerOptions{}),
//	    SiteIDs:    []string{"kitchen"},
//	})
//	if err != nil {
//	    return err
//	}
//	mqttClient.SetOnConnect(bridge.HandleConnected)
//	mqttClient.SetOnDisconnect(bridge.HandleDisconnected)
//	bridge.Start(ctx)
//	defer bridge.Stop()
package hermes
