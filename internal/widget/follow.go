package widget

import (
	"context"

	"go.uber.org/zap"
)

// ToggleFollow follows the creator. There is no unfollow: once followed, or while a
// follow is in flight, it does nothing.
func (w *Widget) ToggleFollow(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.st.isLoadingFollowStatus || w.st.hasFollowedCreator {
		w.mu.Unlock()
		return nil
	}
	meta := w.metaLocked()
	tx := w.beginLocked(
		func(s *state) { s.isLoadingFollowStatus = true },
		func(s *state) { s.hasFollowedCreator = false },
		func(s *state) { s.isLoadingFollowStatus = false },
	)
	w.mu.Unlock()

	if err := w.api.AddMyFollower(ctx, w.id, meta); err != nil {
		tx.abort()
		w.recorder.RecordToggle("follow", "error")
		w.logger.Warn("follow failed", zap.Error(err))
		return err
	}
	tx.commit(func(s *state) { s.hasFollowedCreator = true })
	w.recorder.RecordToggle("follow", "ok")
	return nil
}
