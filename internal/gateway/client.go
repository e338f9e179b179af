// Package gateway is the HTTP client for the external instant-messaging
// gateway. It carries no business logic: every operation is a single bounded
// call whose failure is reported as ok=false (or an empty result) so the
// calling pipelines can decide retry policy themselves.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultTokenTTL = 12 * time.Hour
)

// Config holds the gateway endpoint and the static shared-secret credential.
type Config struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	TokenTTL time.Duration
}

// Client talks to the gateway HTTP API.
type Client struct {
	http     *resty.Client
	logger   *slog.Logger
	tokens   *cache.Cache
	tokenTTL time.Duration
}

// NewClient builds a gateway client. A missing credential is a configuration
// condition: it is logged once here and every call will simply carry an empty
// header.
func NewClient(log *slog.Logger, cfg Config) *Client {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("service", "gateway"))
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	if cfg.Token == "" {
		logger.Warn("gateway credential is not configured; calls will be unauthenticated")
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("token", cfg.Token).
		SetTimeout(timeout)
	return &Client{
		http:     httpClient,
		logger:   logger,
		tokens:   cache.New(tokenTTL, 10*time.Minute),
		tokenTTL: tokenTTL,
	}
}

// IssueToken registers a connection token for uid on the gateway and returns
// it. Tokens are cached per (uid, deviceFlag) so repeated issuance inside the
// TTL reuses the token already known to the gateway.
func (c *Client) IssueToken(ctx context.Context, uid, displayName string, deviceFlag int) (string, bool) {
	key := uid + "|" + strconv.Itoa(deviceFlag)
	if cached, found := c.tokens.Get(key); found {
		return cached.(string), true
	}
	token := uuid.NewString()
	ok := c.post(ctx, "/user/token", tokenRequest{
		UID:        uid,
		Token:      token,
		Name:       displayName,
		DeviceFlag: deviceFlag,
	})
	if !ok {
		return "", false
	}
	c.tokens.Set(key, token, c.tokenTTL)
	return token, true
}

// CreateChannel creates (or, on the gateway, set-unions into) a channel with
// the given initial subscribers.
func (c *Client) CreateChannel(ctx context.Context, channelID string, channelType int, subscribers []string) bool {
	return c.post(ctx, "/channel", channelRequest{
		ChannelID:   channelID,
		ChannelType: channelType,
		Subscribers: subscribers,
	})
}

// AddSubscribers adds uids to a channel's subscriber set.
func (c *Client) AddSubscribers(ctx context.Context, channelID string, channelType int, uids []string) bool {
	return c.post(ctx, "/channel/subscriber_add", channelRequest{
		ChannelID:   channelID,
		ChannelType: channelType,
		Subscribers: uids,
	})
}

// RemoveSubscribers removes uids from a channel's subscriber set.
func (c *Client) RemoveSubscribers(ctx context.Context, channelID string, channelType int, uids []string) bool {
	return c.post(ctx, "/channel/subscriber_remove", channelRequest{
		ChannelID:   channelID,
		ChannelType: channelType,
		Subscribers: uids,
	})
}

// SendMessage pushes a base64 payload into a channel on behalf of fromUID.
func (c *Client) SendMessage(ctx context.Context, fromUID, channelID string, channelType int, encodedPayload string) bool {
	return c.post(ctx, "/message/send", sendRequest{
		FromUID:     fromUID,
		ChannelID:   channelID,
		ChannelType: channelType,
		Payload:     encodedPayload,
	})
}

// SyncMessages reads a slice of a channel's message log. The endpoint is
// polymorphic: it answers either a plain array or an object wrapping a
// "messages" array; both forms are accepted, and any failure or unrecognized
// shape yields an explicit empty result.
func (c *Client) SyncMessages(ctx context.Context, req SyncRequest) []Message {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/channel/messagesync")
	if err != nil {
		c.logger.Error("gateway sync request failed",
			slog.String("channel_id", req.ChannelID),
			slog.Any("error", err))
		return nil
	}
	if resp.IsError() {
		c.logger.Error("gateway sync returned error status",
			slog.String("channel_id", req.ChannelID),
			slog.Int("status", resp.StatusCode()),
			slog.String("body", resp.String()))
		return nil
	}
	return decodeSyncBody(c.logger, resp.Body())
}

func decodeSyncBody(logger *slog.Logger, body []byte) []Message {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var messages []Message
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			logger.Error("decode sync array failed", slog.Any("error", err))
			return nil
		}
		return messages
	case '{':
		var envelope syncEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			logger.Error("decode sync envelope failed", slog.Any("error", err))
			return nil
		}
		return envelope.Messages
	default:
		logger.Error("unrecognized sync response shape", slog.String("prefix", string(trimmed[0])))
		return nil
	}
}

func (c *Client) post(ctx context.Context, path string, body any) bool {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		c.logger.Error("gateway request failed",
			slog.String("path", path),
			slog.Any("error", err))
		return false
	}
	if resp.IsError() {
		c.logger.Error("gateway returned error status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode()),
			slog.String("body", resp.String()))
		return false
	}
	return true
}
