package orchestrator

import "sync"

// conversationLocks is a keyed mutual-exclusion set. At most one completion
// request may be in flight per conversation; a second concurrent request is
// rejected rather than queued, so callers get a fast, retryable busy signal
// instead of an unbounded wait.
type conversationLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{held: make(map[string]struct{})}
}

// TryAcquire claims the lock for a conversation. Returns false if another
// request already holds it.
func (l *conversationLocks) TryAcquire(conversationID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[conversationID]; busy {
		return false
	}
	l.held[conversationID] = struct{}{}
	return true
}

// Release frees the lock for a conversation.
func (l *conversationLocks) Release(conversationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, conversationID)
}
