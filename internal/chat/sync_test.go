package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VPR42/servigo-go/internal/model"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(chatID, sender, content string, at time.Time) model.Message {
	return model.Message{ChatID: chatID, SenderID: sender, Content: content, SentAt: at}
}

func TestDeduplication(t *testing.T) {
	t.Run("same sender and content within window is discarded", func(t *testing.T) {
		s := NewSync()
		require.True(t, s.Apply(msg("c1", "u1", "hi", base)))

		assert.False(t, s.Apply(msg("c1", "u1", "hi", base.Add(1500*time.Millisecond))))
		assert.False(t, s.Apply(msg("c1", "u1", "hi", base.Add(2000*time.Millisecond))))
		assert.Len(t, s.Messages("c1"), 1)
	})

	t.Run("window applies in both directions", func(t *testing.T) {
		s := NewSync()
		require.True(t, s.Apply(msg("c1", "u1", "hi", base)))

		assert.False(t, s.Apply(msg("c1", "u1", "hi", base.Add(-1900*time.Millisecond))))
		assert.Len(t, s.Messages("c1"), 1)
	})

	t.Run("just outside the window is appended", func(t *testing.T) {
		s := NewSync()
		require.True(t, s.Apply(msg("c1", "u1", "hi", base)))

		assert.True(t, s.Apply(msg("c1", "u1", "hi", base.Add(2001*time.Millisecond))))
		assert.Len(t, s.Messages("c1"), 2)
	})

	t.Run("different sender is never a duplicate", func(t *testing.T) {
		s := NewSync()
		require.True(t, s.Apply(msg("c1", "u1", "hi", base)))

		assert.True(t, s.Apply(msg("c1", "u2", "hi", base)))
		assert.Len(t, s.Messages("c1"), 2)
	})

	t.Run("different content is never a duplicate", func(t *testing.T) {
		s := NewSync()
		require.True(t, s.Apply(msg("c1", "u1", "hi", base)))

		assert.True(t, s.Apply(msg("c1", "u1", "hi!", base)))
		assert.Len(t, s.Messages("c1"), 2)
	})

	t.Run("duplicate of a history message is discarded", func(t *testing.T) {
		s := NewSync()
		gen := s.BeginHistory("c1")
		s.CompleteHistory("c1", gen, []model.Message{msg("c1", "u1", "hi", base)})

		assert.False(t, s.Apply(msg("c1", "u1", "hi", base.Add(500*time.Millisecond))))
		assert.Len(t, s.Messages("c1"), 1)
	})
}

func TestTimeSortedReadPath(t *testing.T) {
	t.Run("out of order pushes render sorted", func(t *testing.T) {
		s := NewSync()
		s.Apply(msg("c1", "u1", "third", base.Add(3*time.Minute)))
		s.Apply(msg("c1", "u2", "first", base))
		s.Apply(msg("c1", "u1", "second", base.Add(time.Minute)))

		got := s.Messages("c1")
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Content)
		assert.Equal(t, "second", got[1].Content)
		assert.Equal(t, "third", got[2].Content)
	})

	t.Run("push arriving before history still sorts", func(t *testing.T) {
		s := NewSync()
		// Live frame lands first, then the slower history fetch completes.
		s.Apply(msg("c1", "u2", "newest", base.Add(10*time.Minute)))

		gen := s.BeginHistory("c1")
		history := []model.Message{
			msg("c1", "u1", "old-1", base),
			msg("c1", "u2", "old-2", base.Add(time.Minute)),
		}
		s.CompleteHistory("c1", gen, history)
		// History replaces wholesale; the later push re-arrives via socket.
		s.Apply(msg("c1", "u2", "newest", base.Add(10*time.Minute)))

		got := s.Messages("c1")
		require.Len(t, got, 3)
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].SentAt.Before(got[i-1].SentAt), "sentAt must be non-decreasing")
		}
	})
}

func TestHistorySnapshot(t *testing.T) {
	t.Run("history replaces cached list wholesale", func(t *testing.T) {
		s := NewSync()
		s.Apply(msg("c1", "u1", "stale-local", base))

		gen := s.BeginHistory("c1")
		ok := s.CompleteHistory("c1", gen, []model.Message{msg("c1", "u2", "authoritative", base)})
		assert.True(t, ok)

		got := s.Messages("c1")
		require.Len(t, got, 1)
		assert.Equal(t, "authoritative", got[0].Content)
	})

	t.Run("superseded history fetch is dropped", func(t *testing.T) {
		s := NewSync()
		oldGen := s.BeginHistory("c1")
		newGen := s.BeginHistory("c1")

		ok := s.CompleteHistory("c1", newGen, []model.Message{msg("c1", "u1", "fresh", base)})
		assert.True(t, ok)

		ok = s.CompleteHistory("c1", oldGen, []model.Message{msg("c1", "u1", "stale", base)})
		assert.False(t, ok, "late completion of a superseded fetch must not overwrite")

		got := s.Messages("c1")
		require.Len(t, got, 1)
		assert.Equal(t, "fresh", got[0].Content)
	})
}

func TestConversationReordering(t *testing.T) {
	t.Run("new message moves chat to front and updates preview", func(t *testing.T) {
		s := NewSync()
		s.SetChats([]model.Chat{
			{ID: "c1", Chatmate: model.ChatmateSummary{Name: "Ana"}},
			{ID: "c2", Chatmate: model.ChatmateSummary{Name: "Boris"}},
			{ID: "c3", Chatmate: model.ChatmateSummary{Name: "Vera"}},
		})

		s.Apply(msg("c3", "u9", "are you available?", base))

		chats := s.Chats()
		require.Len(t, chats, 3)
		assert.Equal(t, "c3", chats[0].ID)
		assert.Equal(t, "Vera", chats[0].Chatmate.Name)
		require.NotNil(t, chats[0].LastMessage)
		assert.Equal(t, "are you available?", chats[0].LastMessage.Content)
		assert.Equal(t, "c1", chats[1].ID)
		assert.Equal(t, "c2", chats[2].ID)
	})

	t.Run("discarded duplicate does not reorder", func(t *testing.T) {
		s := NewSync()
		s.SetChats([]model.Chat{{ID: "c1"}, {ID: "c2"}})
		s.Apply(msg("c2", "u1", "ping", base))
		require.Equal(t, "c2", s.Chats()[0].ID)

		s.Apply(msg("c1", "u1", "pong", base.Add(time.Minute)))
		require.Equal(t, "c1", s.Chats()[0].ID)

		// Duplicate for c2 is dropped, so c1 stays in front.
		s.Apply(msg("c2", "u1", "ping", base.Add(time.Second)))
		assert.Equal(t, "c1", s.Chats()[0].ID)
	})

	t.Run("unknown conversation is prepended", func(t *testing.T) {
		s := NewSync()
		s.SetChats([]model.Chat{{ID: "c1"}})

		s.Apply(msg("c-new", "u5", "hello", base))

		chats := s.Chats()
		require.Len(t, chats, 2)
		assert.Equal(t, "c-new", chats[0].ID)
	})
}
