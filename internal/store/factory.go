package store

import (
	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/db"
)

type Stores struct {
	conn db.DBTX
}

// NewStores binds every store to conn, which is either the pool or a
// transaction.
func NewStores(conn db.DBTX) *Stores {
	return &Stores{conn: conn}
}

func (s *Stores) Conversations() ConversationStore {
	return newConversationStore(s.conn)
}

func (s *Stores) Messages() MessageStore {
	return newMessageStore(s.conn)
}

func (s *Stores) GrammarFeedback() GrammarFeedbackStore {
	return newGrammarFeedbackStore(s.conn)
}
