package widget

import (
	"context"

	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/likecoin"
)

// ToggleBookmark saves or unsaves the referrer page. The flip shows immediately and is
// reverted when the backend call fails. A toggle while one is in flight is ignored.
func (w *Widget) ToggleBookmark(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.st.isLoadingBookmark {
		w.mu.Unlock()
		return nil
	}
	target := !w.st.hasBookmarked
	bookmarkID := w.st.bookmarkID
	meta := w.metaLocked()
	tx := w.beginLocked(
		func(s *state) {
			s.isLoadingBookmark = true
			s.hasBookmarked = target
		},
		func(s *state) { s.hasBookmarked = !target },
		func(s *state) { s.isLoadingBookmark = false },
	)
	w.mu.Unlock()

	var err error
	if target {
		var bookmark likecoin.Bookmark
		bookmark, err = w.api.AddMyBookmark(ctx, w.rc.Referrer, meta)
		if err == nil {
			tx.commit(func(s *state) { s.bookmarkID = bookmark.ID })
		}
	} else {
		err = w.api.DeleteMyBookmark(ctx, bookmarkID, meta)
		if err == nil {
			tx.commit(func(s *state) { s.bookmarkID = "" })
		}
	}
	if err != nil {
		tx.abort()
		w.recorder.RecordToggle("bookmark", "error")
		w.logger.Warn("bookmark toggle failed", zap.Bool("target", target), zap.Error(err))
		return err
	}
	w.recorder.RecordToggle("bookmark", "ok")
	return nil
}
