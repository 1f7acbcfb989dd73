package model

import (
	"testing"
	"time"
)

// 惰性降级：online按流逝时间依次降为away、offline，快照本身不修改
func TestPresenceReclassify(t *testing.T) {
	const (
		awayAfter    = 5 * time.Minute
		offlineAfter = 15 * time.Minute
	)
	base := time.UnixMilli(0)
	snapshot := &PresenceSnapshot{UserID: "u1", Status: PresenceStatusOnline, LastSeenAt: base}

	cases := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, PresenceStatusOnline},
		{awayAfter - time.Second, PresenceStatusOnline},
		{awayAfter, PresenceStatusAway},
		{offlineAfter - time.Second, PresenceStatusAway},
		{offlineAfter, PresenceStatusOffline},
		{time.Hour, PresenceStatusOffline},
	}
	for _, c := range cases {
		if got := snapshot.Reclassify(base.Add(c.elapsed), awayAfter, offlineAfter); got != c.want {
			t.Fatalf("elapsed %v: want %s got %s", c.elapsed, c.want, got)
		}
	}
	if snapshot.Status != PresenceStatusOnline {
		t.Fatal("reclassify must not mutate the snapshot")
	}
}

// 显式offline不随时间回升
func TestPresenceReclassifyExplicitOffline(t *testing.T) {
	snapshot := &PresenceSnapshot{Status: PresenceStatusOffline, LastSeenAt: time.Now()}
	if got := snapshot.Reclassify(time.Now(), 5*time.Minute, 15*time.Minute); got != PresenceStatusOffline {
		t.Fatalf("want offline, got %s", got)
	}
}

// 手动away只会进一步降级为offline，不会回到online
func TestPresenceReclassifyAwayStays(t *testing.T) {
	base := time.UnixMilli(0)
	snapshot := &PresenceSnapshot{Status: PresenceStatusAway, LastSeenAt: base}
	if got := snapshot.Reclassify(base.Add(time.Second), 5*time.Minute, 15*time.Minute); got != PresenceStatusAway {
		t.Fatalf("want away, got %s", got)
	}
	if got := snapshot.Reclassify(base.Add(20*time.Minute), 5*time.Minute, 15*time.Minute); got != PresenceStatusOffline {
		t.Fatalf("want offline, got %s", got)
	}
}
