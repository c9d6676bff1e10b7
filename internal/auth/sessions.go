package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// Session is an authenticated login, addressed by an opaque token.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore persists sessions in a bbolt database so logins survive restarts.
type SessionStore struct {
	db  *bolt.DB
	ttl time.Duration
}

func NewSessionStore(path string, ttl time.Duration) (*SessionStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open sessions database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}

	return &SessionStore{db: db, ttl: ttl}, nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Create issues a new session for the user.
func (s *SessionStore) Create(userID int64, username string) (Session, error) {
	session := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		Username:  username,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return Session{}, fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(session.Token), data)
	})
	if err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

// Get looks up a session by token. Expired sessions are deleted on access.
func (s *SessionStore) Get(token string) (Session, bool, error) {
	var (
		session Session
		found   bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(token))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return Session{}, false, err
	}
	if !found {
		return Session{}, false, nil
	}

	if time.Now().After(session.ExpiresAt) {
		if err := s.Delete(token); err != nil {
			return Session{}, false, err
		}
		return Session{}, false, nil
	}
	return session, true, nil
}

func (s *SessionStore) Delete(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(token))
	})
}

// PruneExpired removes all expired sessions and reports how many were dropped.
func (s *SessionStore) PruneExpired() (int, error) {
	now := time.Now()
	pruned := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil || now.After(session.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	return pruned, err
}
