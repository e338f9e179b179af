package gateway

// Channel type constants on the gateway wire. A visitor channel uses the
// visitor's UID as its channel ID.
const (
	ChannelTypePerson  = 1
	ChannelTypeGroup   = 2
	ChannelTypeVisitor = 10
)

// Pull modes accepted by the message sync endpoint.
const (
	PullModeDown = 0
	PullModeUp   = 1
)

type tokenRequest struct {
	UID        string `json:"uid"`
	Token      string `json:"token"`
	Name       string `json:"name,omitempty"`
	DeviceFlag int    `json:"device_flag"`
}

type channelRequest struct {
	ChannelID   string   `json:"channel_id"`
	ChannelType int      `json:"channel_type"`
	Subscribers []string `json:"subscribers,omitempty"`
}

type sendRequest struct {
	FromUID     string `json:"from_uid"`
	ChannelID   string `json:"channel_id"`
	ChannelType int    `json:"channel_type"`
	Payload     string `json:"payload"`
}

// SyncRequest addresses a slice of a channel's durable message log.
type SyncRequest struct {
	LoginUID    string `json:"login_uid"`
	ChannelID   string `json:"channel_id"`
	ChannelType int    `json:"channel_type"`
	StartSeq    int64  `json:"start_message_seq"`
	EndSeq      int64  `json:"end_message_seq"`
	Limit       int    `json:"limit"`
	PullMode    int    `json:"pull_mode"`
}

// Message is one entry of a channel's message log as returned by sync.
type Message struct {
	MessageID   int64  `json:"message_id"`
	MessageSeq  int64  `json:"message_seq"`
	FromUID     string `json:"from_uid"`
	ChannelID   string `json:"channel_id"`
	ChannelType int    `json:"channel_type"`
	Timestamp   int64  `json:"timestamp"`
	Payload     string `json:"payload"`
}

type syncEnvelope struct {
	Messages []Message `json:"messages"`
}
