package feeds

import (
	"sync"

	"pump-console/internal/data"
)

// Retention caps. Inserting past a cap evicts the oldest entry.
const (
	ActivityCap = 20
	ChatCap     = 50
)

// ActivityFeed is the bounded operations log. New entries insert at
// the head so reads are most-recent-first. This is deliberately the
// opposite of the chat feed's ordering.
type ActivityFeed struct {
	mu      sync.Mutex
	entries []data.Activity
}

func NewActivityFeed() *ActivityFeed {
	return &ActivityFeed{}
}

// Add prepends an entry, evicting the oldest past the cap.
func (f *ActivityFeed) Add(activity data.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append([]data.Activity{activity}, f.entries...)
	if len(f.entries) > ActivityCap {
		f.entries = f.entries[:ActivityCap]
	}
}

// Entries returns a copy in most-recent-first order.
func (f *ActivityFeed) Entries() []data.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make([]data.Activity, len(f.entries))
	copy(entries, f.entries)
	return entries
}

// ChatFeed is the bounded operator chat log. New entries append at the
// tail so reads are chronological.
type ChatFeed struct {
	mu      sync.Mutex
	entries []data.ChatMessage
}

func NewChatFeed() *ChatFeed {
	return &ChatFeed{}
}

// Add appends an entry, evicting the oldest past the cap.
func (f *ChatFeed) Add(message data.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, message)
	if len(f.entries) > ChatCap {
		f.entries = f.entries[1:]
	}
}

// Entries returns a copy in chronological order.
func (f *ChatFeed) Entries() []data.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make([]data.ChatMessage, len(f.entries))
	copy(entries, f.entries)
	return entries
}
