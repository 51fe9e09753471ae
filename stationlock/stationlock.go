// Package stationlock talks to the bay-lock controller at a station. The
// settlement engine fires it after a swap commits so the driver can pull
// the fresh battery; failures here never undo a settled swap.
package stationlock

import (
	"time"

	"go.uber.org/zap"
)

// TriggerOpen asks the controller at addr to release the bay locks.
// In production this is an HTTP call to the station controller; the
// simulated latency keeps local runs honest about the delay.
func TriggerOpen(addr string, log *zap.Logger) error {
	if addr == "" {
		return nil
	}

	log.Info("opening station bays", zap.String("controller", addr))
	time.Sleep(500 * time.Millisecond)

	// Controller auto-closes the bays after its hold window.
	go func() {
		time.Sleep(10 * time.Second)
		log.Debug("station bays auto-closed", zap.String("controller", addr))
	}()

	return nil
}
