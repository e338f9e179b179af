package outbound

import (
	"github.com/google/uuid"
)

// SendRequest is an application-level send from the agent console or the
// visitor portal.
type SendRequest struct {
	ConversationID int64  `json:"conversation_id" validate:"required"`
	SenderID       int64  `json:"sender_id"`
	SenderType     string `json:"sender_type" validate:"required,oneof=user agent system"`
	MsgType        string `json:"msg_type" validate:"required,oneof=text image file"`
	Content        string `json:"content" validate:"required"`
	ExternalMsgID  string `json:"external_msg_id"`
}

// SendResult reports the persisted message and whether the real-time push
// reached the gateway. The local record stands either way.
type SendResult struct {
	MessageID uuid.UUID `json:"message_id"`
	Delivered bool      `json:"delivered"`
}
