// Package provision creates gateway channels for new visitors and keeps
// agent subscriptions in step with project assignment.
package provision

import (
	"context"
	"log/slog"
	"time"

	"github.com/wincLei/customer-service-sub000/internal/gateway"
	"github.com/wincLei/customer-service-sub000/internal/identity"
	"github.com/wincLei/customer-service-sub000/internal/store"
)

// Store is the persistence surface the provisioner needs.
type Store interface {
	EnsureUser(ctx context.Context, id, projectID int64, name string) (store.User, error)
	ListProjectAgents(ctx context.Context, projectID int64) ([]int64, error)
	ListActiveUsersSince(ctx context.Context, since time.Time) ([]store.User, error)
}

// Gateway is the slice of the gateway client the provisioner uses.
type Gateway interface {
	CreateChannel(ctx context.Context, channelID string, channelType int, subscribers []string) bool
	AddSubscribers(ctx context.Context, channelID string, channelType int, uids []string) bool
}

type Service struct {
	store   Store
	gateway Gateway
	logger  *slog.Logger
}

func NewService(log *slog.Logger, st Store, gw Gateway) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   st,
		gateway: gw,
		logger:  log.With(slog.String("service", "provision")),
	}
}

// Provision creates the visitor's channel and subscribes the project's
// agents. Channel and subscriber creation on the gateway are set-union
// operations, so re-running for an already provisioned visitor is safe.
// Failures are logged and not retried; they never fail the flow that
// created the visitor.
func (s *Service) Provision(ctx context.Context, projectID, userID int64) {
	channelID := identity.VisitorUID(projectID, userID)

	if ok := s.gateway.CreateChannel(ctx, channelID, gateway.ChannelTypeVisitor, []string{channelID}); !ok {
		s.logger.Error("create visitor channel failed",
			slog.String("channel_id", channelID))
		return
	}

	agents, err := s.store.ListProjectAgents(ctx, projectID)
	if err != nil {
		s.logger.Error("list project agents failed",
			slog.Int64("project_id", projectID),
			slog.Any("error", err))
		return
	}
	if len(agents) == 0 {
		// A channel with no agent subscriber is valid, no one is notified yet.
		return
	}

	uids := make([]string, len(agents))
	for i, agentID := range agents {
		uids[i] = identity.AgentUID(agentID)
	}
	if ok := s.gateway.AddSubscribers(ctx, channelID, gateway.ChannelTypeVisitor, uids); !ok {
		s.logger.Error("subscribe agents failed",
			slog.String("channel_id", channelID),
			slog.Int("agents", len(uids)))
	}
}

// ProvisionAsync runs Provision in the background so the triggering request
// never waits on gateway round-trips.
func (s *Service) ProvisionAsync(projectID, userID int64) {
	go s.Provision(context.Background(), projectID, userID)
}
