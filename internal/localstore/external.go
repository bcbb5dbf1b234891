package localstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// watch checks for external commits every interval until Close.
func (s *Store) watch(interval time.Duration) {
	defer close(s.watchDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			if err := s.pollExternal(context.Background()); err != nil && !s.isClosed() {
				slog.Warn("failed to check for external writes", "error", err)
			}
		}
	}
}

// pollExternal notifies listeners about documents committed by other
// connections since the last check. PRAGMA data_version only changes for
// commits made through another connection, so local writes never show up
// here twice.
func (s *Store) pollExternal(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var version int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version); err != nil {
		return fmt.Errorf("read data_version: %w", s.mapErr(err))
	}
	if version == s.dataVersion {
		return nil
	}
	s.dataVersion = version

	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, id, seq FROM documents
		WHERE seq > ?
		ORDER BY seq, id COLLATE BINARY
	`, s.clock.current())
	if err != nil {
		return fmt.Errorf("scan external writes: %w", s.mapErr(err))
	}
	defer rows.Close()

	changed := make(map[string]map[string]struct{})
	var last int64
	for rows.Next() {
		var (
			collection string
			id         string
			seq        int64
		)
		if err := rows.Scan(&collection, &id, &seq); err != nil {
			return fmt.Errorf("scan external writes: %w", err)
		}
		if changed[collection] == nil {
			changed[collection] = make(map[string]struct{})
		}
		changed[collection][id] = struct{}{}
		last = seq
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan external writes: %w", s.mapErr(err))
	}
	if len(changed) == 0 {
		return nil
	}

	s.clock.observe(last)
	s.hub.notifyChanged(changed, last)
	return nil
}
