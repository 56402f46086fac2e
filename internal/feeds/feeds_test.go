package feeds

import (
	"fmt"
	"testing"

	"pump-console/internal/data"
)

func TestActivityFeed(t *testing.T) {
	t.Run("most recent first", func(t *testing.T) {
		feed := NewActivityFeed()
		feed.Add(data.Activity{ID: 1})
		feed.Add(data.Activity{ID: 2})
		feed.Add(data.Activity{ID: 3})

		entries := feed.Entries()
		if entries[0].ID != 3 || entries[2].ID != 1 {
			t.Errorf("order = %v, want newest first", []int{entries[0].ID, entries[1].ID, entries[2].ID})
		}
	})

	t.Run("caps at twenty keeping the newest", func(t *testing.T) {
		feed := NewActivityFeed()
		for i := 1; i <= 25; i++ {
			feed.Add(data.Activity{ID: i})
		}

		entries := feed.Entries()
		if len(entries) != ActivityCap {
			t.Fatalf("len = %d, want %d", len(entries), ActivityCap)
		}
		if entries[0].ID != 25 {
			t.Errorf("head = %d, want 25", entries[0].ID)
		}
		if entries[len(entries)-1].ID != 6 {
			t.Errorf("tail = %d, want 6 (oldest five evicted)", entries[len(entries)-1].ID)
		}
	})

	t.Run("entries is a copy", func(t *testing.T) {
		feed := NewActivityFeed()
		feed.Add(data.Activity{ID: 1, Message: "original"})

		entries := feed.Entries()
		entries[0].Message = "mutated"
		if feed.Entries()[0].Message != "original" {
			t.Error("caller mutation leaked into the feed")
		}
	})
}

func TestChatFeed(t *testing.T) {
	t.Run("chronological order", func(t *testing.T) {
		feed := NewChatFeed()
		for i := 1; i <= 3; i++ {
			feed.Add(data.ChatMessage{ID: i, Message: fmt.Sprintf("msg %d", i)})
		}

		entries := feed.Entries()
		if entries[0].ID != 1 || entries[2].ID != 3 {
			t.Errorf("order = %v, want oldest first", []int{entries[0].ID, entries[1].ID, entries[2].ID})
		}
	})

	t.Run("caps at fifty evicting the oldest", func(t *testing.T) {
		feed := NewChatFeed()
		for i := 1; i <= 60; i++ {
			feed.Add(data.ChatMessage{ID: i})
		}

		entries := feed.Entries()
		if len(entries) != ChatCap {
			t.Fatalf("len = %d, want %d", len(entries), ChatCap)
		}
		if entries[0].ID != 11 {
			t.Errorf("head = %d, want 11 (oldest ten evicted)", entries[0].ID)
		}
		if entries[len(entries)-1].ID != 60 {
			t.Errorf("tail = %d, want 60", entries[len(entries)-1].ID)
		}
	})
}
