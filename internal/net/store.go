package net

import "golang.org/x/crypto/bcrypt"

// SessionStore tracks live sessions. Tick loop only.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session) { st.sessions[s.ID] = s }

func (st *SessionStore) Remove(id uint64) { delete(st.sessions, id) }

func (st *SessionStore) Get(id uint64) *Session { return st.sessions[id] }

func (st *SessionStore) Len() int { return len(st.sessions) }

// Raw exposes the map for iteration with deletion.
func (st *SessionStore) Raw() map[uint64]*Session { return st.sessions }

func (st *SessionStore) ForEach(fn func(*Session)) {
	for _, s := range st.sessions {
		fn(s)
	}
}

// CheckSecret reports whether secret matches the bcrypt hash. An empty
// hash means the server is open.
func CheckSecret(hash, secret string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// HashSecret produces a bcrypt hash suitable for network.join_secret_hash.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
