// Package reconcile classifies freshly fetched appointments as new, updated
// or unchanged against the last batch seen for each id.
package reconcile

import "github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"

// Result of one reconcile pass. All holds the batch in input order; New and
// Updated are subsets of it.
type Result struct {
	All     []appointment.Appointment
	New     []appointment.Appointment
	Updated []appointment.Appointment
}

// Stats counts the records currently held by a snapshot.
type Stats struct {
	Total int
	// Records whose creation and modification stamps are equal.
	NewLooking int
	// Records edited at the source since they were created.
	Edited int
}

// Snapshot is the last-seen record per appointment id. It is not safe for
// concurrent use; the sync service serialises passes.
type Snapshot struct {
	records map[string]appointment.Appointment
}

func NewSnapshot() *Snapshot {
	return &Snapshot{records: make(map[string]appointment.Appointment)}
}

// Reconcile classifies every record of batch and then stores it, replacing
// whatever the snapshot held for its id.
//
// A record whose stamps say it was never edited is new only the first time
// its id is seen. A record with diverging stamps is updated when one of the
// editable fields changed, and new when its id has not been seen before.
// Ids repeated within a batch compare against their earlier occurrence.
func (s *Snapshot) Reconcile(batch []appointment.Appointment) Result {
	res := Result{All: make([]appointment.Appointment, 0, len(batch))}

	for _, rec := range batch {
		existing, seen := s.records[rec.ID]

		switch {
		case rec.LooksNew():
			if !seen {
				res.New = append(res.New, rec)
			}
		case seen:
			if rec.DiffersFrom(&existing) {
				res.Updated = append(res.Updated, rec)
			}
		default:
			res.New = append(res.New, rec)
		}

		s.records[rec.ID] = rec
		res.All = append(res.All, rec)
	}

	return res
}

// Get returns the last-seen record for id.
func (s *Snapshot) Get(id string) (appointment.Appointment, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

func (s *Snapshot) Len() int {
	return len(s.records)
}

func (s *Snapshot) Stats() Stats {
	st := Stats{Total: len(s.records)}
	for _, rec := range s.records {
		if rec.LooksNew() {
			st.NewLooking++
		} else {
			st.Edited++
		}
	}
	return st
}

// Reset forgets every record, so the next pass reports its whole batch as new.
func (s *Snapshot) Reset() {
	clear(s.records)
}
