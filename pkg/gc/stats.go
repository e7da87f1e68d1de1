package gc

import (
	"fmt"
	"time"
)

// Stats contains statistics from a collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	DryRun          bool      // Nothing was removed
	TempSwept       uint64    // Stale temporary files removed
	ExistingCount   uint64    // Entries listed in the store
	VerifiedCount   uint64    // Entries whose content matched their digest
	CorruptedCount  uint64    // Entries whose content did not match
	ReferencedCount uint64    // Entries reported by the reference source
	OrphanedCount   uint64    // Entries not referenced
	DeletedCount    uint64    // Corrupted or orphaned entries removed
	FailedCount     uint64    // Entries that could not be verified or removed
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	summary := fmt.Sprintf("temp_swept=%d existing=%d verified=%d corrupted=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.TempSwept, s.ExistingCount, s.VerifiedCount, s.CorruptedCount,
		s.OrphanedCount, s.DeletedCount, s.FailedCount, s.Duration())
	if s.DryRun {
		summary += " (dry run)"
	}
	return summary
}
