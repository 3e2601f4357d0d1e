package domain

import "time"

// SelectionKey identifies one confirmed choice: a user holding an option of a poll.
// It is the dedup key across the whole delivery pipeline.
type SelectionKey struct {
	PollID   int64 `json:"poll_id"`
	OptionID int64 `json:"option_id"`
	UserID   int64 `json:"user_id"`
}

// Response is a user's recorded (not necessarily confirmed) selection.
type Response struct {
	Key         SelectionKey `json:"key"`
	Username    *string      `json:"username,omitempty"`
	Confirmed   bool         `json:"confirmed"`
	RespondedAt time.Time    `json:"responded_at"`
}

// RecordResponseRequest is the inbound payload for recording a vote
// and for confirming a selection.
type RecordResponseRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

func (r *RecordResponseRequest) Validate() error {
	if r.UserID <= 0 {
		return ErrInvalidUserID
	}
	return nil
}

// UploadToken is a single-use, time-bound credential granting access to the
// proof-upload endpoint for exactly one selection.
//
// A token is valid iff UsedAt is nil and the current time is before ExpiresAt.
// Redemption sets UsedAt exactly once; tokens are never reused or extended.
type UploadToken struct {
	Token     string       `json:"token"`
	Key       SelectionKey `json:"key"`
	Username  *string      `json:"username,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	UsedAt    *time.Time   `json:"used_at,omitempty"`
}

// Valid reports whether the token can still be redeemed at the given instant.
func (t *UploadToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// Artifact is the admin-uploaded reference image attached to a poll option,
// joined with the display context needed to build a send caption.
type Artifact struct {
	Key        SelectionKey
	FilePath   string // relative to the upload store root
	Question   string
	OptionText string
}

// SendJob is one photo delivery to a single recipient. Transient: it lives
// only on the outbound send queue and is lost on process restart.
type SendJob struct {
	RecipientID int64
	PayloadRef  string // local file path, or a remote URL as fallback
	Caption     string
	ActionURL   *string // upload-link button; nil means no button
}

// AnnounceJob asks the bot to post a newly created poll to the group chat.
type AnnounceJob struct {
	PollID int64
}

// Execution is a user's uploaded proof of having acted on a selection.
type Execution struct {
	Key       SelectionKey `json:"key"`
	FilePath  string       `json:"file_path"`
	CreatedAt time.Time    `json:"created_at"`
}
