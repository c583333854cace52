package widget

// txn is an optimistic state change with a compensating rollback. begin runs under the
// widget lock; commit and abort take it themselves, and both run release.
type txn struct {
	w        *Widget
	rollback func(*state)
	release  func(*state)
}

func (w *Widget) beginLocked(apply, rollback, release func(*state)) *txn {
	apply(&w.st)
	return &txn{w: w, rollback: rollback, release: release}
}

func (t *txn) commit(update func(*state)) {
	t.w.mu.Lock()
	defer t.w.mu.Unlock()
	if update != nil {
		update(&t.w.st)
	}
	t.release(&t.w.st)
}

func (t *txn) abort() {
	t.w.mu.Lock()
	defer t.w.mu.Unlock()
	t.rollback(&t.w.st)
	t.release(&t.w.st)
}
