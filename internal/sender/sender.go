package sender

import (
	"context"

	"github.com/tradepoll/delivery-service/internal/domain"
)

// Sender abstracts the external bot API the drain scheduler dispatches to.
// Mocking this interface in tests gives full control over dispatch behaviour
// without making real HTTP calls.
type Sender interface {
	// AnnouncePoll posts the poll with its option keyboard to the group chat.
	AnnouncePoll(ctx context.Context, poll *domain.Poll) error
	// SendPhoto delivers one photo with caption to a single recipient,
	// optionally attaching an action-link button.
	SendPhoto(ctx context.Context, recipientID int64, payloadRef, caption string, actionURL *string) error
}
