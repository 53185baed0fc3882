// Package mqtt connects bosshunter to an MQTT broker for remote status
// and remote control.
//
// Outbound, the service publishes:
//   - {prefix}/system/status  retained online/offline, with a Last Will
//   - {prefix}/state          retained current automaton state
//   - {prefix}/event          run events (clicks, transitions, stops)
//
// Inbound, it listens on {prefix}/control/+ for start, stop and
// threshold commands; see ControlHandler.
//
//	bosshunter ──state/event──► broker ──► dashboards, phones
//	bosshunter ◄──control/*──── broker ◄── home automation
//
// The client reconnects on its own and restores subscriptions after a
// reconnect. Handlers run on paho's goroutines; a panicking handler is
// recovered and logged.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllControl(), 1, mqtt.ControlHandler(ctrl, topics, logger))
package mqtt
