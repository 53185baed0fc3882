// Package influxdb writes automation metrics to InfluxDB v2.
//
// Three measurements are recorded:
//
//	match       tags: label, accepted   fields: confidence
//	transition  tags: from, to          fields: count
//	run         tags: outcome           fields: duration_s, channel_switches
//
// Match points are the useful ones for tuning: plotting confidence per
// label over time shows how close a template sits to the threshold.
//
// The client satisfies hunter.MetricsWriter, so it plugs straight into
// hunter.NewMetricsSink. Writes never block the automaton; they are
// batched and flushed on size or interval.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink := hunter.NewMetricsSink(client)
package influxdb
