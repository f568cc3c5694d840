package worker

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crickview/prediction-api/internal/models"
)

func TestToInningsRowEpochTimestamp(t *testing.T) {
	rec := &models.RawStatRecord{
		MatchID:   "550e8400-e29b-41d4-a716-446655440000",
		PlayerID:  "p1",
		Timestamp: 1700000000.5,
		Runs:      45,
	}
	receivedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	row := toInningsRow(rec, "{}", receivedAt)

	if row.Timestamp.Unix() != 1700000000 {
		t.Errorf("Timestamp = %v, want the feed epoch", row.Timestamp)
	}
	if got := row.Timestamp.Nanosecond(); got < 499_000_000 || got > 501_000_000 {
		t.Errorf("fractional seconds = %d ns, want ~500ms", got)
	}
	if row.MatchID.String() != rec.MatchID {
		t.Errorf("MatchID = %s, want the parsed UUID %s", row.MatchID, rec.MatchID)
	}
}

func TestToInningsRowFallsBackToReceivedAt(t *testing.T) {
	receivedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ts   float64
	}{
		{"Zero", 0},
		{"RelativeOffset", 12345},
		{"JustBelowCutoff", minValidUnixTimestamp - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &models.RawStatRecord{MatchID: "m1", PlayerID: "p1", Timestamp: tt.ts}
			row := toInningsRow(rec, "{}", receivedAt)
			if !row.Timestamp.Equal(receivedAt) {
				t.Errorf("Timestamp = %v, want receivedAt %v", row.Timestamp, receivedAt)
			}
		})
	}
}

func TestToInningsRowDerivesStableMatchUUID(t *testing.T) {
	a := toInningsRow(&models.RawStatRecord{MatchID: "2026-final", PlayerID: "p1"}, "{}", time.Now())
	b := toInningsRow(&models.RawStatRecord{MatchID: "2026-final", PlayerID: "p2"}, "{}", time.Now())
	c := toInningsRow(&models.RawStatRecord{MatchID: "2026-semi", PlayerID: "p1"}, "{}", time.Now())

	if a.MatchID != b.MatchID {
		t.Errorf("same match ID mapped to %s and %s", a.MatchID, b.MatchID)
	}
	if a.MatchID == c.MatchID {
		t.Error("different match IDs mapped to the same UUID")
	}
	if a.MatchID == uuid.Nil {
		t.Error("derived UUID should not be the nil UUID")
	}
}
