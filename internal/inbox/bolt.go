// Package inbox journals raw gateway callbacks in an embedded BoltDB file so
// callbacks that failed on a transient error can be replayed later.
package inbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"carrental-backend/internal/service"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "callbacks"

// OutcomePending marks a callback that was recorded but never finished, for
// example because the process died mid-flight.
const OutcomePending service.CallbackOutcome = "pending"

var ErrNotFound = errors.New("callback not found")

type Entry struct {
	ID         uint64                  `json:"id"`
	Channel    string                  `json:"channel"`
	Params     url.Values              `json:"params"`
	Outcome    service.CallbackOutcome `json:"outcome"`
	Attempts   int                     `json:"attempts"`
	ReceivedAt time.Time               `json:"received_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (or creates) the journal file and its bucket.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open callback inbox %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func itob(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// Record appends a pending entry and returns its id.
func (s *Store) Record(ctx context.Context, channel string, params url.Values) (uint64, error) {
	var id uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		now := s.now()
		e := Entry{
			ID:         seq,
			Channel:    channel,
			Params:     params,
			Outcome:    OutcomePending,
			ReceivedAt: now,
			UpdatedAt:  now,
		}
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		id = seq
		return b.Put(itob(seq), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record %s callback: %w", channel, err)
	}
	return id, nil
}

// MarkOutcome stores the result of one processing attempt.
func (s *Store) MarkOutcome(ctx context.Context, id uint64, outcome service.CallbackOutcome) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		raw := b.Get(itob(id))
		if raw == nil {
			return ErrNotFound
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		e.Outcome = outcome
		e.Attempts++
		e.UpdatedAt = s.now()

		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

func (s *Store) Get(id uint64) (*Entry, error) {
	var e Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketName)).Get(itob(id))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListReplayable returns failed entries, plus pending ones received before
// stalledBefore, that have been attempted fewer than maxAttempts times.
// Entries come back oldest first.
func (s *Store) ListReplayable(stalledBefore time.Time, maxAttempts, limit int) ([]Entry, error) {
	items := []Entry{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(items) >= limit {
				return nil
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if maxAttempts > 0 && e.Attempts >= maxAttempts {
				continue
			}
			switch {
			case e.Outcome == service.CallbackFailed:
			case e.Outcome == OutcomePending && e.ReceivedAt.Before(stalledBefore):
			default:
				continue
			}
			items = append(items, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Prune deletes settled entries last touched before cutoff and reports how
// many were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if (e.Outcome == service.CallbackDone || e.Outcome == service.CallbackRejected) && e.UpdatedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}
