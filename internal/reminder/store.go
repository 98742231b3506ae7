package reminder

import (
	"sync"
	"time"

	kit "remindbot/internal/transport"
)

// Store is the in-memory reminder table. All operations are atomic with
// respect to each other (single mutation point); List returns a stable
// snapshot, never a live view. There is no persistence: a process restart
// loses all reminders.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*Reminder
	order  []int64 // insertion order
}

func NewStore() *Store {
	return &Store{items: map[int64]*Reminder{}}
}

// Create allocates the next ID (monotonic, never reused) and inserts a
// Scheduled reminder. It returns a copy of the new record.
func (s *Store) Create(dest kit.ChatTarget, body string, fireAt time.Time, mediaRef string) Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rem := &Reminder{
		ID:          s.nextID,
		Destination: dest,
		Body:        body,
		MediaRef:    mediaRef,
		FireAt:      fireAt,
		State:       StateScheduled,
		CreatedAt:   time.Now(),
	}
	s.items[rem.ID] = rem
	s.order = append(s.order, rem.ID)
	return *rem
}

// Get returns a copy of the reminder, if present.
func (s *Store) Get(id int64) (Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.items[id]
	if !ok {
		return Reminder{}, false
	}
	return *rem, true
}

// UpdateFireAt moves the reminder back to Scheduled with the new instant.
func (s *Store) UpdateFireAt(id int64, fireAt time.Time) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.items[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	rem.FireAt = fireAt
	rem.State = StateScheduled
	return *rem, nil
}

// MarkFired transitions the reminder to Fired. The record stays in the
// store so post-fire cancel/reschedule can still reference the same ID.
func (s *Store) MarkFired(id int64) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.items[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	rem.State = StateFired
	return *rem, nil
}

// Delete removes the reminder from the table.
func (s *Store) Delete(id int64) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.items[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return *rem, nil
}

// List returns copies of all reminders in insertion order.
func (s *Store) List() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.order))
	for _, id := range s.order {
		if rem, ok := s.items[id]; ok {
			out = append(out, *rem)
		}
	}
	return out
}

// Clear empties the table and returns the removed reminders.
// ID allocation continues monotonically across clears.
func (s *Store) Clear() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.order))
	for _, id := range s.order {
		if rem, ok := s.items[id]; ok {
			out = append(out, *rem)
		}
	}
	s.items = map[int64]*Reminder{}
	s.order = nil
	return out
}

// Len reports the current table size.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
