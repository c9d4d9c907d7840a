package state

import (
	"context"
	"time"
)

// RunOfflineSweeper runs the periodic health-silence sweep until ctx is
// cancelled. It ticks at interval (recommended ≤ 1 Hz per spec §4.2) and
// marks any device StatusOnline whose LastSeen is older than
// offlineTimeout as StatusOffline, emitting a ChangeStatus StateChange for
// each transition.
func RunOfflineSweeper(ctx context.Context, s *Store, interval, offlineTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweepOffline(now, offlineTimeout)
		}
	}
}

func (s *Store) sweepOffline(now time.Time, offlineTimeout time.Duration) {
	var changes []StateChange

	s.mu.Lock()
	for id, d := range s.devices {
		if d.Status != StatusOnline {
			continue
		}
		if now.Sub(d.LastSeen) <= offlineTimeout {
			continue
		}
		before := d.deepCopy()
		d.Status = StatusOffline
		after := d.deepCopy()
		changes = append(changes, StateChange{
			DeviceID: id,
			Kind:     ChangeStatus,
			Before:   before,
			After:    after,
			Ts:       now,
		})
	}
	s.mu.Unlock()

	s.broadcast(changes)
}
