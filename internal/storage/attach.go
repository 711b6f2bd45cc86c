package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const attachmentBucket = "attachments"

// Attachment is the durable identity snapshot bound to a connection token.
// It is written when a session activates and read back before a room's
// session table is rebuilt, so an interrupted room can restore its active
// members without consulting in-memory state.
type Attachment struct {
	Username string `json:"username"`
}

// AttachStore provides a BoltDB-backed attachment store.
type AttachStore struct {
	db *bbolt.DB
}

// OpenAttachStore opens the attachment database at the provided path.
func OpenAttachStore(path string) (*AttachStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("attachment store path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open attachment db: %w", err)
	}
	store := &AttachStore{db: db}
	if err := store.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *AttachStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save persists the attachment for a connection token.
func (s *AttachStore) Save(token string, attachment Attachment) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("connection token is required")
	}
	payload, err := json.Marshal(attachment)
	if err != nil {
		return fmt.Errorf("marshal attachment: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(attachmentBucket))
		if bucket == nil {
			return fmt.Errorf("attachment bucket is missing")
		}
		return bucket.Put([]byte(token), payload)
	})
}

// Load fetches the attachment for a connection token. The second return
// value reports whether one was present.
func (s *AttachStore) Load(token string) (Attachment, bool, error) {
	var attachment Attachment
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(attachmentBucket))
		if bucket == nil {
			return fmt.Errorf("attachment bucket is missing")
		}
		payload := bucket.Get([]byte(token))
		if payload == nil {
			return nil
		}
		if err := json.Unmarshal(payload, &attachment); err != nil {
			return fmt.Errorf("unmarshal attachment: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return Attachment{}, false, err
	}
	return attachment, found, nil
}

// Delete removes the attachment for a connection token, if any.
func (s *AttachStore) Delete(token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(attachmentBucket))
		if bucket == nil {
			return fmt.Errorf("attachment bucket is missing")
		}
		return bucket.Delete([]byte(token))
	})
}

func (s *AttachStore) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(attachmentBucket))
		if err != nil {
			return fmt.Errorf("create attachment bucket: %w", err)
		}
		return nil
	})
}
