package index

import (
	"context"
	"fmt"
	"time"
)

// DeleteOlderThan runs the hourly retention sweep (spec.md §4.3): every
// document older than retentionDays is removed from all three indices.
// A failure on one index is logged by the caller and does not prevent
// the sweep from continuing on the others.
func (s *Store) DeleteOlderThan(ctx context.Context, retentionDays int) map[string]error {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	body := map[string]any{
		"query": map[string]any{"range": map[string]any{"timestamp": map[string]any{"lt": cutoff}}},
	}
	r, err := marshalBody(body)
	if err != nil {
		return map[string]error{"*": fmt.Errorf("marshal retention query: %w", err)}
	}

	errs := make(map[string]error)
	for _, idx := range []string{s.logsIndex, s.metricsIndex, s.hostMetricsIndex} {
		if _, seekErr := r.Seek(0, 0); seekErr != nil {
			errs[idx] = seekErr
			continue
		}
		if err := s.do(ctx, "POST", "/"+idx+"/_delete_by_query", r, nil); err != nil {
			errs[idx] = fmt.Errorf("delete_by_query on %s: %w", idx, err)
		}
	}
	return errs
}
