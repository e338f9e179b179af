package store

import (
	"context"
	"fmt"
)

// ListProjectAgents returns the agent ids assigned to a project.
func (s *Store) ListProjectAgents(ctx context.Context, projectID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT agent_id FROM project_agents WHERE project_id = $1 ORDER BY agent_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project %d agents: %w", projectID, err)
	}
	defer rows.Close()
	var agents []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		agents = append(agents, id)
	}
	return agents, rows.Err()
}

// ClaimFlag records a named one-time flag. It reports true exactly once per
// name across all processes, which is how one-shot side effects (like
// registering the system sender on the gateway) are fenced.
func (s *Store) ClaimFlag(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO system_flags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return false, fmt.Errorf("claim flag %q: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}
