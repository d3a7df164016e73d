package service

import (
	"context"

	"go.uber.org/zap"
)

// withSyncGuard runs fn while holding the site's sync token. The token is a
// compare-and-swap on sites.sync_state, so it also holds across processes.
func (s *SiteService) withSyncGuard(ctx context.Context, siteID int64, fn func() error) error {
	now := s.now()
	acquired, err := s.uow.Sites.AcquireSync(ctx, siteID, now, now.Add(-s.opts.StaleLockAfter))
	if err != nil {
		return err
	}
	if !acquired {
		s.logger.Info("sync guard busy", zap.Int64("site_id", siteID))
		return ErrSyncInProgress
	}

	defer func() {
		if err := s.uow.Sites.ReleaseSync(context.WithoutCancel(ctx), siteID); err != nil {
			s.logger.Error("release sync guard failed", zap.Int64("site_id", siteID), zap.Error(err))
		}
	}()
	return fn()
}
