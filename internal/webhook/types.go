package webhook

// Event type values carried in the webhook query string.
const (
	EventMsgNotify    = "msg.notify"
	EventMsgOffline   = "msg.offline"
	EventOnlineStatus = "user.onlinestatus"
)

// NotifyEvent is one record of a message-notify batch. The batch is a plain
// JSON array of these records; this wire shape is fixed by the gateway.
type NotifyEvent struct {
	FromUID     string `json:"from_uid"`
	ChannelID   string `json:"channel_id"`
	ChannelType int    `json:"channel_type"`
	MessageSeq  int64  `json:"message_seq"`
	Timestamp   int64  `json:"timestamp"`
	Payload     string `json:"payload"`
}

// SummaryUpdate is pushed to event subscribers after a successful reconcile.
type SummaryUpdate struct {
	UserID             int64  `json:"user_id"`
	ProjectID          int64  `json:"project_id"`
	LastMessageContent string `json:"last_message_content"`
	LastMessageSeq     int64  `json:"last_message_seq"`
	UnreadCount        int64  `json:"unread_count"`
}

// StatusUpdate is pushed to event subscribers after a presence line.
type StatusUpdate struct {
	UserID       int64 `json:"user_id"`
	ProjectID    int64 `json:"project_id"`
	DeviceFlag   int   `json:"device_flag"`
	OnlineStatus int   `json:"online_status"`
}
