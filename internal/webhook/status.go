package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wincLei/customer-service-sub000/internal/events"
	"github.com/wincLei/customer-service-sub000/internal/identity"
)

// statusFieldsMin is the minimum field count of a presence line:
// uid-deviceFlag-onlineStatus[-connectionId-deviceOnlineCount-totalOnlineCount].
// Trailing fields are ignored here.
const statusFieldsMin = 3

// IngestOnlineStatus processes a batch of presence lines. Both online and
// offline transitions count as liveness evidence: each valid visitor line
// moves that visitor's last-active timestamp to now.
func (i *Ingestor) IngestOnlineStatus(ctx context.Context, body []byte) error {
	var lines []string
	if err := json.Unmarshal(body, &lines); err != nil {
		return fmt.Errorf("decode status batch: %w", err)
	}
	for _, line := range lines {
		i.applyStatusLine(ctx, line)
	}
	return nil
}

func (i *Ingestor) applyStatusLine(ctx context.Context, line string) {
	parts := strings.Split(line, "-")
	if len(parts) < statusFieldsMin {
		i.logger.Warn("skip malformed status line", slog.String("line", line))
		return
	}
	uidPart := parts[0]
	if identity.IsAgentUID(uidPart) {
		return
	}
	uid, err := identity.Parse(uidPart)
	if err != nil || uid.Kind != identity.KindVisitor {
		i.logger.Warn("skip status line with unparseable uid", slog.String("uid", uidPart))
		return
	}

	if err := i.store.TouchLastActive(ctx, uid.UserID); err != nil {
		i.logger.Error("touch last active failed",
			slog.Int64("user_id", uid.UserID),
			slog.Any("error", err))
		return
	}

	if i.hub != nil {
		deviceFlag, _ := strconv.Atoi(parts[1])
		onlineStatus, _ := strconv.Atoi(parts[2])
		i.hub.Broadcast(events.TypeOnlineStatus, StatusUpdate{
			UserID:       uid.UserID,
			ProjectID:    uid.ProjectID,
			DeviceFlag:   deviceFlag,
			OnlineStatus: onlineStatus,
		})
	}
}
