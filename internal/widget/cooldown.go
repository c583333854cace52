package widget

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/likecoin"
)

// triggerSuperLikeLocked moves Idle to Triggered and arms the start delay. The caller
// sends the returned request once the lock is released.
func (w *Widget) triggerSuperLikeLocked() (likecoin.SuperLikeRequest, likecoin.RequestMeta) {
	w.st.hasSuperLiked = true
	w.st.canSuperLike = false
	w.st.cooldown = cooldownStart
	w.st.phase = PhaseTriggered
	w.delay = w.clock.AfterFunc(w.startDelay, w.startCooldown)

	req := likecoin.SuperLikeRequest{
		Referrer:          w.rc.Referrer,
		Timezone:          w.tz,
		ParentSuperLikeID: w.st.parentSuperLikeID,
	}
	return req, w.metaLocked()
}

func (w *Widget) startCooldown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.st.phase != PhaseTriggered {
		return
	}
	w.delay = nil
	w.st.phase = PhaseCoolingDown
	w.tick = w.clock.TickFunc(w.tickEvery, w.cooldownTick)
}

func (w *Widget) cooldownTick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.st.phase != PhaseCoolingDown {
		return
	}
	w.st.cooldown -= cooldownStep
	if w.st.cooldown > 0 {
		return
	}
	w.st.cooldown = 0
	w.st.phase = PhaseIdle
	if w.tick != nil {
		w.tick.Stop()
		w.tick = nil
	}
}

func (w *Widget) stopCooldownLocked() {
	if w.delay != nil {
		w.delay.Stop()
		w.delay = nil
	}
	if w.tick != nil {
		w.tick.Stop()
		w.tick = nil
	}
}

// setServerCooldownLocked shows a countdown reported by the backend. The backend owns that
// countdown, so no local decay starts; a running local countdown is left alone.
func (w *Widget) setServerCooldownLocked(progress float64) {
	if w.st.phase != PhaseIdle {
		return
	}
	v := int(math.Round(progress * 100))
	if v < 0 || math.IsNaN(progress) {
		v = 0
	}
	w.st.cooldown = v
}

func (w *Widget) postSuperLike(ctx context.Context, req likecoin.SuperLikeRequest, meta likecoin.RequestMeta) {
	if err := w.api.PostSuperLike(ctx, w.id, req, meta); err != nil {
		w.recorder.RecordSuperLike("error")
		w.logger.Warn("super like submission failed", zap.Error(err))
		return
	}
	w.recorder.RecordSuperLike("ok")
	w.logger.Info("super like submitted")
}
