// Package mqtt provides the broker session for the NLU bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and backoff
//   - Connection state (disconnected, connecting, connected)
//   - Validated publishing and a per-filter subscription registry
//   - A retained Last Will for offline detection
//   - Topic filter validation and matching
//
// # Reconnects
//
// Sessions are clean, so the broker forgets subscriptions when the
// connection drops. The client does not replay them itself. Its owner
// re-subscribes from the OnConnect callback, which fires once per
// successful connection, and the registry keyed by filter keeps that
// idempotent.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	client.SetLogger(logger)
//	client.SetWill(healthTopic, offlinePayload)
//	client.SetOnConnect(bridge.HandleConnected)
//	client.SetOnDisconnect(bridge.HandleDisconnected)
//	if err := client.Connect(); err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
