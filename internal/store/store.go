// Package store is the Postgres persistence layer. Queries are written
// directly against pgx; every mutation the webhook and outbound pipelines
// depend on is a single statement or a short transaction.
package store

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "store")),
	}
}

type User struct {
	ID           int64
	ProjectID    int64
	Name         string
	LastActiveAt time.Time
	CreatedAt    time.Time
}

type Conversation struct {
	ID                 int64
	ProjectID          int64
	UserID             int64
	LastMessageContent string
	LastMessageTime    *time.Time
	CreatedAt          time.Time
}

type Message struct {
	ID             uuid.UUID
	ProjectID      int64
	ConversationID int64
	ExternalMsgID  string
	SenderType     string
	SenderID       int64
	MsgType        string
	Content        string
	CreatedAt      time.Time
}

type Summary struct {
	UserID             int64
	LastMessageContent string
	LastMessageTime    *time.Time
	LastMessageSeq     int64
	UnreadCount        int64
	UpdatedAt          time.Time
}

const (
	SenderTypeUser   = "user"
	SenderTypeAgent  = "agent"
	SenderTypeSystem = "system"
)
