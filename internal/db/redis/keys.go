package redis

import (
	"context"

	"github.com/kailas-cloud/hybridex/internal/db"
)

const scanPageSize = 256

// DeleteMatching walks the keyspace with SCAN and unlinks each page as it
// arrives, so memory stays bounded by one page.
func (s *Store) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanPageSize).Build()
		page, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return removed, &db.Error{Op: db.OpScan, Err: err}
		}
		if len(page.Elements) > 0 {
			n, err := s.client.Do(ctx, s.client.B().Unlink().Key(page.Elements...).Build()).AsInt64()
			if err != nil {
				return removed, &db.Error{Op: db.OpUnlink, Err: err}
			}
			removed += int(n)
		}
		if page.Cursor == 0 {
			return removed, nil
		}
		cursor = page.Cursor
	}
}
