package widget

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/likecoin/likecoin-button/internal/likecoin"
)

// Sync loads the viewer's status in four parallel branches. A failed branch does not
// cancel the others and what succeeded is kept; the first error is logged and returned.
// The super-like branch is skipped while the viewer's UTC offset is pending; RefreshSuperLike
// runs it once SetTimezone supplied one.
func (w *Widget) Sync(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	meta := w.metaLocked()
	tz, pending := w.tz, w.tzPending
	w.mu.Unlock()
	ref := w.rc.Referrer

	var g errgroup.Group
	g.Go(func() error {
		status, err := w.api.GetLikeButtonMyStatus(ctx, w.id, meta)
		if err != nil {
			w.releaseReaderFlags()
			return err
		}
		if !w.applyMyStatus(status) {
			w.releaseReaderFlags()
			return nil
		}
		w.syncReaderState(ctx)
		return nil
	})
	g.Go(func() error {
		self, err := w.api.GetLikeButtonSelfCount(ctx, w.id, ref)
		if err != nil {
			return err
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.st.viewer.Liker == "" {
			w.st.viewer.Liker = self.Liker
			w.st.viewer.IsLoggedIn = self.Liker != ""
		}
		w.st.setLikeCount(self.Count)
		w.st.likeSent = w.st.likeCount
		return nil
	})
	g.Go(func() error {
		total, err := w.api.GetLikeButtonTotalCount(ctx, w.id, ref)
		if err != nil {
			return err
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		w.st.totalLike = total.Total
		return nil
	})
	if !pending {
		g.Go(func() error { return w.syncSuperLike(ctx, tz) })
	}

	if err := g.Wait(); err != nil {
		w.logger.Warn("status sync failed", zap.Error(err))
		return err
	}
	return nil
}

// RefreshSuperLike reloads only the super-like status. Errors are logged and returned.
func (w *Widget) RefreshSuperLike(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	tz := w.tz
	w.mu.Unlock()
	if err := w.syncSuperLike(ctx, tz); err != nil {
		w.logger.Warn("super like status sync failed", zap.Error(err))
		return err
	}
	return nil
}

func (w *Widget) syncSuperLike(ctx context.Context, tz string) error {
	status, err := w.api.GetSuperLikeMyStatus(ctx, tz, w.rc.Referrer)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	// a local super-like in flight is newer than what the server reports
	if w.st.phase == PhaseIdle {
		w.st.canSuperLike = status.CanSuperLike
		w.st.hasSuperLiked = len(status.LastSuperLikeInfos) > 0
	}
	w.st.nextSuperLikeTime = status.NextSuperLikeTime
	w.setServerCooldownLocked(status.Cooldown)
	return nil
}

// applyMyStatus stores the sign-in status and reports whether the viewer is logged in.
func (w *Widget) applyMyStatus(status likecoin.MyStatus) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := &w.st.viewer
	v.IsLoggedIn = status.Liker != ""
	if status.Liker != "" {
		v.Liker = status.Liker
	}
	v.IsSubscribed = status.IsSubscribed
	v.IsTrialSubscriber = status.IsTrialSubscriber
	if v.HasCookieSupport && status.ServerCookieSupported != nil {
		v.HasCookieSupport = *status.ServerCookieSupported
	}
	return v.IsLoggedIn
}

func (w *Widget) releaseReaderFlags() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.isLoadingBookmark = false
	w.st.isLoadingFollowStatus = false
}

// syncReaderState fetches the bookmark and follow status of a logged-in viewer. Errors
// are dropped; the loading flags are cleared either way.
func (w *Widget) syncReaderState(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		bookmark, err := w.api.GetMyBookmark(ctx, w.rc.Referrer)
		w.mu.Lock()
		defer w.mu.Unlock()
		if err == nil {
			w.st.bookmarkID = bookmark.ID
			w.st.hasBookmarked = bookmark.ID != ""
		} else if !likecoin.IsNotFound(err) {
			w.logger.Debug("bookmark status unavailable", zap.Error(err))
		}
		w.st.isLoadingBookmark = false
		return nil
	})
	g.Go(func() error {
		follower, err := w.api.GetMyFollower(ctx, w.id)
		w.mu.Lock()
		defer w.mu.Unlock()
		if err == nil {
			w.st.hasFollowedCreator = follower.IsFollowed
		} else if !likecoin.IsNotFound(err) {
			w.logger.Debug("follow status unavailable", zap.Error(err))
		}
		w.st.isLoadingFollowStatus = false
		return nil
	})
	_ = g.Wait()
}
