package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreAppendAndHistory(t *testing.T) {
	s := NewSessionStore()
	assert.Nil(t, s.History("hw03"))

	s.Append("hw03", Message{Role: "user", Content: "q"}, Message{Role: "assistant", Content: "a"})
	history := s.History("hw03")
	require.Len(t, history, 2)

	history[0].Content = "mutated"
	assert.Equal(t, "q", s.History("hw03")[0].Content)
}

func TestSessionStoreCleanup(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore()
	s.now = func() time.Time { return now }

	s.Append("old", Message{Role: "user", Content: "stale"})
	now = now.Add(2 * time.Hour)
	s.Append("fresh", Message{Role: "user", Content: "hi"})

	assert.Equal(t, 1, s.Cleanup(time.Hour))
	assert.Nil(t, s.Get("old"))
	assert.NotNil(t, s.Get("fresh"))
}

func TestSessionStoreListAndDelete(t *testing.T) {
	s := NewSessionStore()
	s.Append("b", Message{Role: "user", Content: "b"})
	s.Append("a", Message{Role: "user", Content: "a"})

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Len(t, s.List(), 1)
}

func TestSessionStoreConcurrentAppend(t *testing.T) {
	s := NewSessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append("shared", Message{Role: "user", Content: "x"})
		}()
	}
	wg.Wait()

	assert.Len(t, s.History("shared"), 50)
}

func TestSessionStoreLockSerializesExchanges(t *testing.T) {
	s := NewSessionStore()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		running int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("hw03")
			defer unlock()

			mu.Lock()
			running++
			if running > maxSeen {
				maxSeen = running
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, s.locks)

	unlock := s.Lock("other")
	done := make(chan struct{})
	go func() {
		s.Lock("hw03")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on one session blocked another")
	}
	unlock()
}
