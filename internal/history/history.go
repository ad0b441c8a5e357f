// Package history keeps a local record of expenses submitted from this
// machine, so the CLI can show what was sent without another API call.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const submissionBucket = "submissions"

// Submission is one locally recorded expense submission.
type Submission struct {
	ExpenseID   string    `json:"expense_id"`
	LegacyID    int       `json:"legacy_id"`
	Collective  string    `json:"collective"`
	Description string    `json:"description"`
	Amount      int       `json:"amount"` // minor currency units
	Currency    string    `json:"currency,omitempty"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Store defines the interface for submission history operations
type Store interface {
	// SaveSubmission records a submission
	SaveSubmission(sub *Submission) error

	// ListSubmissions returns all recorded submissions, oldest first
	ListSubmissions() ([]*Submission, error)

	// Close closes the store
	Close() error
}

// BoltStore implements the Store interface using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the history database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(submissionBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveSubmission records a submission, keyed by submission time so
// iteration order is chronological.
func (b *BoltStore) SaveSubmission(sub *Submission) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(submissionBucket))
		data, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("marshaling submission: %w", err)
		}
		key := fmt.Sprintf("%020d-%d", sub.SubmittedAt.UnixNano(), sub.LegacyID)
		return bucket.Put([]byte(key), data)
	})
}

// ListSubmissions returns all recorded submissions, oldest first.
func (b *BoltStore) ListSubmissions() ([]*Submission, error) {
	subs := make([]*Submission, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(submissionBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var sub Submission
			if err := json.Unmarshal(v, &sub); err != nil {
				return fmt.Errorf("unmarshaling submission: %w", err)
			}
			subs = append(subs, &sub)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
