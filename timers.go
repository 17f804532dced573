package checkout

import (
	"sync"
	"time"
)

// TimerHandle is a cancellable scheduled action.
type TimerHandle interface {
	Stop()
}

// Scheduler is the platform timer capability the widget schedules delayed
// and periodic work through. The production implementation runs on the
// runtime clock; tests inject a deterministic one.
type Scheduler interface {
	// Once runs fn a single time after d.
	Once(d time.Duration, fn func()) TimerHandle
	// Every runs fn repeatedly with period d until stopped.
	Every(d time.Duration, fn func()) TimerHandle
}

// Navigator abstracts the outward platform effects of the flow: following a
// gateway redirect and copying text for the user.
type Navigator interface {
	Navigate(url string) error
	CopyText(text string) error
}

// NopNavigator discards navigation and clipboard requests.
type NopNavigator struct{}

func (NopNavigator) Navigate(string) error { return nil }
func (NopNavigator) CopyText(string) error { return nil }

// systemScheduler schedules on the runtime clock.
type systemScheduler struct{}

func (systemScheduler) Once(d time.Duration, fn func()) TimerHandle {
	return &onceHandle{timer: time.AfterFunc(d, fn)}
}

func (systemScheduler) Every(d time.Duration, fn func()) TimerHandle {
	if d <= 0 {
		d = time.Second
	}
	h := &everyHandle{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-h.done:
				return
			}
		}
	}()
	return h
}

type onceHandle struct {
	timer *time.Timer
}

func (h *onceHandle) Stop() {
	h.timer.Stop()
}

type everyHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *everyHandle) Stop() {
	h.once.Do(func() { close(h.done) })
}

// timerSet owns the widget's three timer categories: the success-callback
// delay, the redirect countdown pair, and the transfer-verify cooldown.
// Every handle is cleared on natural completion, on explicit reset of the
// owning sub-state, on method switch, and on teardown.
type timerSet struct {
	mu        sync.Mutex
	scheduler Scheduler

	success      TimerHandle
	redirectTick TimerHandle
	redirectNav  TimerHandle
	cooldownTick TimerHandle
}

func newTimerSet(scheduler Scheduler) *timerSet {
	return &timerSet{scheduler: scheduler}
}

// armSuccess schedules fn once after d, cancelling and replacing any
// still-pending success timer rather than stacking callbacks.
func (t *timerSet) armSuccess(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.success != nil {
		t.success.Stop()
	}
	t.success = t.scheduler.Once(d, func() {
		t.clearSuccess()
		fn()
	})
}

func (t *timerSet) clearSuccess() {
	t.mu.Lock()
	t.success = nil
	t.mu.Unlock()
}

func (t *timerSet) stopSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.success != nil {
		t.success.Stop()
		t.success = nil
	}
}

// startRedirect arms the countdown pair: a 1-second display tick and the
// one-shot navigation both derived from the same delay. The pair is always
// cancelled together.
func (t *timerSet) startRedirect(delay time.Duration, onTick, onNavigate func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopRedirectLocked()
	t.redirectTick = t.scheduler.Every(time.Second, onTick)
	t.redirectNav = t.scheduler.Once(delay, func() {
		t.stopRedirect()
		onNavigate()
	})
}

func (t *timerSet) stopRedirect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopRedirectLocked()
}

func (t *timerSet) stopRedirectLocked() {
	if t.redirectTick != nil {
		t.redirectTick.Stop()
		t.redirectTick = nil
	}
	if t.redirectNav != nil {
		t.redirectNav.Stop()
		t.redirectNav = nil
	}
}

// startCooldown arms the 1-second verification cooldown tick, independent of
// the redirect timers.
func (t *timerSet) startCooldown(onTick func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cooldownTick != nil {
		t.cooldownTick.Stop()
	}
	t.cooldownTick = t.scheduler.Every(time.Second, onTick)
}

func (t *timerSet) stopCooldown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cooldownTick != nil {
		t.cooldownTick.Stop()
		t.cooldownTick = nil
	}
}

// stopAll cancels every owned timer; teardown calls it synchronously.
func (t *timerSet) stopAll() {
	t.stopSuccess()
	t.stopRedirect()
	t.stopCooldown()
}
