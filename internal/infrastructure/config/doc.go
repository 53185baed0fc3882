// Package config handles loading and validating Boss Hunter configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of ranges and required fields
//   - Default value handling
//
// Timings under hunter.timing are Go duration strings ("500ms", "15s") and
// describe every blind wait and polling cadence the automaton uses. They are
// tuned to the game client's loading latency, not to the host machine.
//
// Security Considerations:
//   - MQTT credentials and the InfluxDB token should be set via environment variables
//   - The control API binds to 127.0.0.1 by default; exposing it lets anyone
//     start runs that move the mouse on this desktop
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hunter.Threshold)
package config
