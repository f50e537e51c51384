package notify

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Toast is a user facing notification. A zero Duration means it never expires.
type Toast struct {
	ID       uuid.UUID     `json:"id"`
	Title    string        `json:"title"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"-"`
	Closable bool          `json:"closable"`
	Created  time.Time     `json:"created"`
}

func (t Toast) Expired(now time.Time) bool {
	return t.Duration > 0 && !now.Before(t.Created.Add(t.Duration))
}

// Store keeps the notifications shown next to the canvas. Success toasts
// expire on their own, failure toasts stay until the process exits.
type Store struct {
	mu              sync.Mutex
	toasts          map[uuid.UUID]Toast
	successDuration time.Duration
	now             func() time.Time
}

func NewStore(successDuration time.Duration) *Store {
	return &Store{
		toasts:          make(map[uuid.UUID]Toast),
		successDuration: successDuration,
		now:             time.Now,
	}
}

func (s *Store) Success(title string) {
	s.add(Toast{Title: title, Status: StatusSuccess, Duration: s.successDuration, Closable: true})
}

func (s *Store) Failure(title string) {
	s.add(Toast{Title: title, Status: StatusError})
}

func (s *Store) add(t Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = uuid.New()
	t.Created = s.now()
	s.toasts[t.ID] = t
	s.prune(t.Created)

	slog.Info("notification", "status", t.Status, "title", t.Title)
}

// Active returns the toasts that are still visible, oldest first.
func (s *Store) Active() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.prune(now)

	out := make([]Toast, 0, len(s.toasts))
	for _, t := range s.toasts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Dismiss removes a closable toast. It reports whether a toast was removed.
func (s *Store) Dismiss(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.toasts[id]
	if !ok || !t.Closable {
		return false
	}
	delete(s.toasts, id)
	return true
}

func (s *Store) prune(now time.Time) {
	for id, t := range s.toasts {
		if t.Expired(now) {
			delete(s.toasts, id)
		}
	}
}
