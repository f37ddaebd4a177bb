// Package store persists, ranks and expires verified (callsign, route)
// bindings, and hosts the cross-cycle candidate TTL collections the
// matcher reads and writes. Built on BuntDB with a key-prefix
// convention: bind:* for bindings, candidates:*/failed_candidates:* for
// candidate sets, flightidx:* as the flight-number secondary index, and
// a single snapshot key for the position publication.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/avbind/flightbind/internal/model"
	"github.com/avbind/flightbind/monitoring"
)

const (
	bindingPrefix   = "bind:"
	flightIndexFmt  = "flightidx:%s:%d"
	candidatePrefix = "candidates:"
	failedPrefix    = "failed_candidates:"

	// CandidateTTL is how long a candidate set survives without being
	// touched; each set expires 24h after its own last write.
	CandidateTTL = 24 * time.Hour

	// snapshotKey is the single durable key holding the current position
	// snapshot. It is replaced atomically as a whole value, never
	// mutated field-by-field.
	snapshotKey = "snapshot"
)

// Policy configures Put's conflict resolution.
type Policy struct {
	OutdatedThreshold time.Duration
	ErrorThreshold    int
}

// DefaultPolicy pairs an externally configured outdated threshold with
// the standard 10-error replacement cutoff.
func DefaultPolicy(outdated time.Duration) Policy {
	return Policy{OutdatedThreshold: outdated, ErrorThreshold: 10}
}

// Store is the verified-route store and candidate-set host.
type Store struct {
	db     *buntdb.DB
	policy Policy
}

// Open opens (or creates) a BuntDB file at path.
func Open(path string, policy Policy) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, policy: policy}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func bindingKey(callsign string, route model.Route) string {
	return bindingPrefix + callsign + "|" + route.String()
}

// Get returns the stored binding for (callsign, route), if any.
func (s *Store) Get(callsign string, route model.Route) (model.VerifiedBinding, bool) {
	var out model.VerifiedBinding
	found := false
	_ = s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(bindingKey(callsign, route))
		if err != nil {
			return nil
		}
		if json.Unmarshal([]byte(v), &out) == nil {
			found = true
		}
		return nil
	})
	return out, found
}

// Put inserts or updates a verified binding under the conflict policy:
//   - old.tier < new.tier                 -> accept
//   - old.update_time older than outdated -> accept
//   - old.error_count > threshold         -> accept
//   - old.tier > new.tier                 -> reject
//   - otherwise (equal tier, fresh, few errors) -> accept, overwrite
//
// On accept, valid_from is preserved from old iff the (operator_iata,
// flight_number) pair is unchanged; error_count is preserved unless
// resetErrors is set.
func (s *Store) Put(binding model.VerifiedBinding, resetErrors bool) (accepted bool, err error) {
	err = s.db.Update(func(tx *buntdb.Tx) error {
		key := bindingKey(binding.Callsign, binding.Route)
		old, hadOld := getTx(tx, key)

		if hadOld {
			outdated := s.policy.OutdatedThreshold > 0 && binding.UpdatedAt.Sub(old.UpdatedAt) > s.policy.OutdatedThreshold
			errorsExceeded := old.ErrorCount > s.policy.ErrorThreshold
			reason := ""
			switch {
			case old.Tier < binding.Tier:
				accepted = true
			case outdated:
				accepted = true
			case errorsExceeded:
				accepted = true
			case old.Tier > binding.Tier:
				accepted = false
				reason = "lower_tier"
			default:
				accepted = true
			}
			if !accepted {
				monitoring.StoreConflictsTotal.WithLabelValues(reason).Inc()
			}
		} else {
			accepted = true
		}
		if !accepted {
			return nil
		}

		if hadOld && old.FlightNumber == binding.FlightNumber && old.OperatorIATA == binding.OperatorIATA {
			binding.ValidFrom = old.ValidFrom
		} else if binding.ValidFrom.IsZero() {
			binding.ValidFrom = binding.UpdatedAt
		}
		if hadOld && !resetErrors {
			binding.ErrorCount = old.ErrorCount
		} else if resetErrors {
			binding.ErrorCount = 0
		}

		b, merr := json.Marshal(binding)
		if merr != nil {
			return merr
		}
		_, _, serr := tx.Set(key, string(b), nil)
		if serr != nil {
			return serr
		}
		idxKey := fmt.Sprintf(flightIndexFmt, binding.OperatorIATA, binding.FlightNumber)
		_, _, _ = tx.Set(idxKey, key, nil)
		return nil
	})
	return accepted, err
}

func getTx(tx *buntdb.Tx, key string) (model.VerifiedBinding, bool) {
	v, err := tx.Get(key)
	if err != nil {
		return model.VerifiedBinding{}, false
	}
	var out model.VerifiedBinding
	if json.Unmarshal([]byte(v), &out) != nil {
		return model.VerifiedBinding{}, false
	}
	return out, true
}

// FindByFlightNumber resolves the most recently updated binding for an
// (operator IATA, flight number) pair, if one was ever stored.
func (s *Store) FindByFlightNumber(operatorIATA string, flightNumber int) (model.VerifiedBinding, bool) {
	var out model.VerifiedBinding
	found := false
	_ = s.db.View(func(tx *buntdb.Tx) error {
		idxKey := fmt.Sprintf(flightIndexFmt, operatorIATA, flightNumber)
		key, err := tx.Get(idxKey)
		if err != nil {
			return nil
		}
		v, err := tx.Get(key)
		if err != nil {
			return nil
		}
		if json.Unmarshal([]byte(v), &out) == nil {
			found = true
		}
		return nil
	})
	return out, found
}

// RecentCallsigns returns the set of distinct callsigns whose tier >= q
// and whose update_time is within window of asOf — the set C7 consults
// as "already known, don't search again".
func (s *Store) RecentCallsigns(minTier model.Tier, window time.Duration, asOf time.Time) map[string]bool {
	cutoff := asOf.Add(-window)
	out := map[string]bool{}
	_ = s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(bindingPrefix+"*", func(key, val string) bool {
			var b model.VerifiedBinding
			if json.Unmarshal([]byte(val), &b) == nil {
				if b.Tier >= minTier && b.UpdatedAt.After(cutoff) {
					out[b.Callsign] = true
				}
			}
			return true
		})
	})
	return out
}

// IncreaseError increments the error counter for (callsign, route) —
// the penalty applied when a candidate fails the geometric route check.
func (s *Store) IncreaseError(callsign string, route model.Route) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		key := bindingKey(callsign, route)
		b, ok := getTx(tx, key)
		if !ok {
			return nil
		}
		b.ErrorCount++
		encoded, err := json.Marshal(b)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(key, string(encoded), nil)
		return err
	})
}

// ResetError clears the error counter for (callsign, route).
func (s *Store) ResetError(callsign string, route model.Route) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		key := bindingKey(callsign, route)
		b, ok := getTx(tx, key)
		if !ok {
			return nil
		}
		b.ErrorCount = 0
		encoded, err := json.Marshal(b)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(key, string(encoded), nil)
		return err
	})
}

// PublishSnapshot replaces the durable position-snapshot key with snap in
// its entirety. Callers must never attempt to update individual positions
// in place; a new snapshot always supersedes the whole prior payload.
func (s *Store) PublishSnapshot(snap model.Snapshot) error {
	encoded, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(snapshotKey, string(encoded), nil)
		return err
	})
}

// ReadSnapshot returns the most recently published position snapshot, if
// any has been published yet.
func (s *Store) ReadSnapshot() (model.Snapshot, bool) {
	var out model.Snapshot
	found := false
	_ = s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(snapshotKey)
		if err != nil {
			return nil
		}
		if json.Unmarshal([]byte(v), &out) == nil {
			found = true
		}
		return nil
	})
	return out, found
}

// AllBindings returns every currently stored verified binding, for the
// read-only query API's full listing.
func (s *Store) AllBindings() []model.VerifiedBinding {
	out := []model.VerifiedBinding{}
	_ = s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(bindingPrefix+"*", func(key, val string) bool {
			var b model.VerifiedBinding
			if json.Unmarshal([]byte(val), &b) == nil {
				out = append(out, b)
			}
			return true
		})
	})
	return out
}

// BindingsByCallsign returns every stored binding for callsign, across
// every route it has ever been verified against.
func (s *Store) BindingsByCallsign(callsign string) []model.VerifiedBinding {
	out := []model.VerifiedBinding{}
	_ = s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(bindingPrefix+callsign+"|*", func(key, val string) bool {
			var b model.VerifiedBinding
			if json.Unmarshal([]byte(val), &b) == nil {
				out = append(out, b)
			}
			return true
		})
	})
	return out
}

// --- Candidate TTL sets ---

func candidateKey(flightKey string) string { return candidatePrefix + flightKey }
func failedKey(flightKey string) string    { return failedPrefix + flightKey }

// AddCandidate adds callsign to the `candidates:<flightKey>` set,
// refreshing its 24h TTL.
func (s *Store) AddCandidate(flightKey, callsign string) error {
	return s.addToSet(candidateKey(flightKey), callsign, "candidates")
}

// AddFailedCandidate adds callsign to the `failed_candidates:<flightKey>`
// set, refreshing its 24h TTL. A callsign here is demoted for this key
// even if it later reappears in candidates.
func (s *Store) AddFailedCandidate(flightKey, callsign string) error {
	return s.addToSet(failedKey(flightKey), callsign, "failed_candidates")
}

func (s *Store) addToSet(key, member, setLabel string) error {
	var size int
	err := s.db.Update(func(tx *buntdb.Tx) error {
		members := readSet(tx, key)
		members[member] = true
		size = len(members)
		encoded, merr := json.Marshal(setToSlice(members))
		if merr != nil {
			return merr
		}
		_, _, serr := tx.Set(key, string(encoded), &buntdb.SetOptions{Expires: true, TTL: CandidateTTL})
		return serr
	})
	if err == nil {
		monitoring.CandidateSetSize.WithLabelValues(setLabel).Set(float64(size))
	}
	return err
}

// Candidates returns the current (unexpired) `candidates:<flightKey>` set.
func (s *Store) Candidates(flightKey string) map[string]bool {
	out := map[string]bool{}
	_ = s.db.View(func(tx *buntdb.Tx) error {
		out = readSet(tx, candidateKey(flightKey))
		return nil
	})
	return out
}

// FailedCandidates returns the current (unexpired) `failed_candidates:<flightKey>` set.
func (s *Store) FailedCandidates(flightKey string) map[string]bool {
	out := map[string]bool{}
	_ = s.db.View(func(tx *buntdb.Tx) error {
		out = readSet(tx, failedKey(flightKey))
		return nil
	})
	return out
}

func readSet(tx *buntdb.Tx, key string) map[string]bool {
	out := map[string]bool{}
	v, err := tx.Get(key)
	if err != nil {
		return out
	}
	var members []string
	if json.Unmarshal([]byte(v), &members) != nil {
		return out
	}
	for _, m := range members {
		out[m] = true
	}
	return out
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
