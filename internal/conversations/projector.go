// Package conversations projects the flat direct-message log into one
// summary per peer and owns the session's copy of that log.
package conversations

import (
	"github.com/samber/lo"

	"github.com/emilythestrangee/warroom/backend/internal/models"
)

type Conversation struct {
	PeerID      string         `json:"peer_id"`
	Peer        models.User    `json:"peer"`
	LastMessage models.Message `json:"last_message"`
	UnreadCount int            `json:"unread_count"`
}

// Project reduces messages, which must be sorted newest first, to one
// conversation per peer in order of each peer's latest message. Unread
// counts only messages the peer sent to self that are still unread. Peer
// profiles are left empty; see Inbox.Conversations.
func Project(self string, newestFirst []models.Message) []Conversation {
	unread := lo.CountValuesBy(
		lo.Filter(newestFirst, func(m models.Message, _ int) bool {
			return m.RecipientID == self && !m.Read
		}),
		func(m models.Message) string { return m.SenderID },
	)

	seen := make(map[string]struct{})
	out := make([]Conversation, 0)
	for _, m := range newestFirst {
		peer := m.Peer(self)
		if _, ok := seen[peer]; ok {
			continue
		}
		seen[peer] = struct{}{}
		out = append(out, Conversation{
			PeerID:      peer,
			LastMessage: m,
			UnreadCount: unread[peer],
		})
	}
	return out
}

// Between returns the messages exchanged by self and peer, oldest first.
func Between(self, peer string, oldestFirst []models.Message) []models.Message {
	return lo.Filter(oldestFirst, func(m models.Message, _ int) bool {
		return m.Involves(self) && m.Peer(self) == peer
	})
}
