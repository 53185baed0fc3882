package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Controller is the run control surface driven by control messages.
// It is satisfied by *hunter.Controller.
type Controller interface {
	Start(ctx context.Context) (string, error)
	Stop()
	SetThreshold(t float64) error
}

// ControlHandler turns messages on {prefix}/control/{action} into
// controller calls:
//
//	control/start      payload ignored
//	control/stop       payload ignored
//	control/threshold  0.85 or {"threshold": 0.85}
//
// ctx bounds Start's wait for a previous run to wind down.
func ControlHandler(ctx context.Context, ctrl Controller, topics Topics, logger Logger) MessageHandler {
	return func(topic string, payload []byte) error {
		action, ok := topics.ControlAction(topic)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, topic)
		}

		switch action {
		case ActionStart:
			id, err := ctrl.Start(ctx)
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			if logger != nil {
				logger.Info("run started over mqtt", "run_id", id)
			}
			return nil

		case ActionStop:
			ctrl.Stop()
			if logger != nil {
				logger.Info("run stopped over mqtt")
			}
			return nil

		case ActionThreshold:
			t, err := parseThreshold(payload)
			if err != nil {
				return err
			}
			return ctrl.SetThreshold(t)

		default:
			return fmt.Errorf("%w: %s", ErrUnknownCommand, action)
		}
	}
}

// parseThreshold accepts a bare number or {"threshold": n}.
func parseThreshold(payload []byte) (float64, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var body struct {
			Threshold *float64 `json:"threshold"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return 0, fmt.Errorf("threshold payload: %w", err)
		}
		if body.Threshold == nil {
			return 0, fmt.Errorf("threshold payload: missing \"threshold\"")
		}
		return *body.Threshold, nil
	}

	t, err := strconv.ParseFloat(string(payload), 64)
	if err != nil {
		return 0, fmt.Errorf("threshold payload: %w", err)
	}
	return t, nil
}
