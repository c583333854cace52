package widget

import (
	"context"

	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/likecoin"
	"github.com/likecoin/likecoin-button/internal/requestctx"
)

// Outcome says what a like click did.
type Outcome int

const (
	// OutcomeLiked added a like to the pending batch.
	OutcomeLiked Outcome = iota
	// OutcomeSuperLiked sent a super-like and started the cooldown.
	OutcomeSuperLiked
	// OutcomeCoolingDown ignored a click at MaxLike while the cooldown runs.
	OutcomeCoolingDown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuperLiked:
		return "super_liked"
	case OutcomeCoolingDown:
		return "cooling_down"
	default:
		return "liked"
	}
}

// Like handles one click on the like button.
func (w *Widget) Like() (Outcome, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return OutcomeLiked, ErrClosed
	}

	if w.st.likeCount >= MaxLike {
		if w.st.cooldown > 0 {
			w.mu.Unlock()
			return OutcomeCoolingDown, nil
		}
		req, meta := w.triggerSuperLikeLocked()
		w.mu.Unlock()
		w.background(func(ctx context.Context) {
			w.postSuperLike(ctx, req, meta)
		})
		return OutcomeSuperLiked, nil
	}

	w.st.setLikeCount(w.st.likeCount + 1)
	w.debounce.trigger()
	w.mu.Unlock()
	return OutcomeLiked, nil
}

func (w *Widget) flush(gen uint64) {
	w.mu.Lock()
	if w.closed || !w.debounce.fired(gen) {
		w.mu.Unlock()
		return
	}
	delta, meta := w.takeDeltaLocked()
	if delta > 0 {
		w.bg.Add(1)
	}
	w.mu.Unlock()

	if delta > 0 {
		defer w.bg.Done()
		w.postLikes(delta, meta)
	}
}

// takeDeltaLocked moves the unsent likes into LikeSent and TotalLike ahead of the call.
func (w *Widget) takeDeltaLocked() (int, likecoin.RequestMeta) {
	delta := w.st.likeCount - w.st.likeSent
	if delta <= 0 {
		return 0, likecoin.RequestMeta{}
	}
	w.st.likeSent += delta
	w.st.totalLike += delta
	return delta, w.metaLocked()
}

func (w *Widget) postLikes(delta int, meta likecoin.RequestMeta) {
	ctx := requestctx.Background(w.logger)
	if err := w.api.PostLikeButton(ctx, w.id, delta, meta); err != nil {
		w.logger.Warn("like submission failed", zap.Int("count", delta), zap.Error(err))
		return
	}
	w.recorder.RecordLikeFlush(delta)
	w.logger.Debug("likes submitted", zap.Int("count", delta))
}
