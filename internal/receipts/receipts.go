// Package receipts holds the unread-counter and read-receipt rules as pure
// functions so the storage implementations and the tests share one source of
// truth for them.
package receipts

import (
	"time"

	"github.com/agencydesk/support-chat-service/internal/models"
)

// Receiver returns the role whose unread counter grows when senderRole
// appends a message.
func Receiver(senderRole models.Role) models.Role {
	return senderRole.Opposite()
}

// OnAppend returns the updated counter pair after a message from senderRole.
// The sender's own counter never moves.
func OnAppend(counts models.UnreadCount, senderRole models.Role) models.UnreadCount {
	switch Receiver(senderRole) {
	case models.RoleAdmin:
		counts.Admin++
	case models.RoleUser:
		counts.User++
	}
	return counts
}

// UnreadFor returns the indexes of messages a mark-read by readerRole would
// transition: authored by the opposite role and not yet read.
func UnreadFor(msgs []models.Message, readerRole models.Role) []int {
	var idx []int
	for i := range msgs {
		if !msgs[i].IsRead && msgs[i].SenderRole != readerRole {
			idx = append(idx, i)
		}
	}
	return idx
}

// ApplyRead flips every unread message addressed to readerRole and returns
// how many were transitioned. Read state is monotonic: already-read entries
// are never touched, so a second call transitions zero.
func ApplyRead(msgs []models.Message, readerRole models.Role, now time.Time) int {
	var n int
	for i := range msgs {
		if !msgs[i].IsRead && msgs[i].SenderRole != readerRole {
			msgs[i].IsRead = true
			at := now
			msgs[i].ReadAt = &at
			n++
		}
	}
	return n
}

// ResetCounter zeroes the counter owned by role.
func ResetCounter(counts models.UnreadCount, role models.Role) models.UnreadCount {
	if role == models.RoleAdmin {
		counts.Admin = 0
	} else {
		counts.User = 0
	}
	return counts
}

// Recount derives the counter pair from the message log. The stored counters
// must always agree with this; tests lean on it.
func Recount(msgs []models.Message) models.UnreadCount {
	var c models.UnreadCount
	for i := range msgs {
		if msgs[i].IsRead {
			continue
		}
		switch Receiver(msgs[i].SenderRole) {
		case models.RoleAdmin:
			c.Admin++
		case models.RoleUser:
			c.User++
		}
	}
	return c
}
