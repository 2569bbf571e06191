// Package influxdb writes optional bridge telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements
// are written: nlu_query (one point per recognition request) and
// nlu_train (one point per training run).
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteQuery("kitchen", "GetTime", true, 1, latency)
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Asynchronous write failures are reported through SetOnError.
package influxdb
