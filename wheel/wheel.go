// Package wheel implements the hierarchical timing wheel used to drive
// EventSleep wakeups and the runtime's other timers (spec section 4.1).
//
// Grounded directly on original_source/TimerService.h and .cpp: a 256-slot
// section-1 wheel ticked once per 10ms quantum, cascading into four 64-slot
// section-2 wheels as original_source/TimerService.cpp's DoAdd/Update/
// TickSection2 describe. The teacher (eventloop) has no wheel of its own —
// its timers are a container/heap — so this package is new code shaped by
// the original implementation rather than adapted teacher code (see
// DESIGN.md).
package wheel

import (
	"container/list"
	"sync"
)

const (
	// Period is the tick quantum, in milliseconds, of one section-1 slot.
	Period = 10

	section1Bits = 8
	section2Bits = 6

	section1Num  = 1 << section1Bits // 256
	section2Num  = 1 << section2Bits // 64
	section1Mask = section1Num - 1
	section2Mask = section2Num - 1

	section2Levels = 4
)

// Timer is a cancellable handle returned by Wheel.Add, analogous to
// original_source/TimerService.h's TimerHandle (a weak_ptr<TimerSlot>).
// Its zero value is not usable; obtain one from Wheel.Add.
type Timer struct {
	tm uint64
	cb func()

	// slot/elem locate this timer within whichever list.List currently
	// holds it, so Wheel.Cancel can erase it in O(1) (TimerSlot::slot /
	// TimerSlot::pos in the original).
	slot *list.List
	elem *list.Element

	canceled bool
}

// Wheel is a hierarchical timing wheel: one 256-slot section-1 ring ticked
// every Period milliseconds, cascading into four 64-slot section-2 rings
// (original_source/TimerService.h's time_slot_section1_/time_slot_section2_).
// The zero value is not usable; construct with New.
type Wheel struct {
	mu sync.Mutex

	section1 [section1Num]*list.List
	section2 [section2Levels][section2Num]*list.List

	// curTime is the current tick count, in Period-millisecond units,
	// starting at 1 (original_source/TimerService.h: cur_time_{1}).
	curTime uint64
}

// New constructs an empty Wheel with its tick counter initialized per
// original_source/TimerService.h (cur_time_ starts at 1, not 0, so that a
// zero-valued Timer.tm is never mistaken for a live deadline).
func New() *Wheel {
	w := &Wheel{curTime: 1}
	for i := range w.section1 {
		w.section1[i] = list.New()
	}
	for s := range w.section2 {
		for i := range w.section2[s] {
			w.section2[s][i] = list.New()
		}
	}
	return w
}

// Now returns the wheel's current tick count (Period-millisecond units).
// Used by the scheduler to stamp wakeup_time (spec section 4.4 OnResume).
func (w *Wheel) Now() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.curTime
}

// Add schedules cb to run after timeoutMilliseconds have elapsed, rounded to
// the nearest Period (original_source/TimerService.cpp's AddTimer: "timeout
// = (timeout_milliseconds + kPeriod/2) / kPeriod"). A timeout that rounds to
// zero ticks fires cb synchronously, on the caller's goroutine, and returns
// nil.
func (w *Wheel) Add(timeoutMilliseconds uint32, cb func()) *Timer {
	timeout := uint64(timeoutMilliseconds+Period/2) / Period
	if timeout == 0 {
		cb()
		return nil
	}

	t := &Timer{cb: cb}

	w.mu.Lock()
	defer w.mu.Unlock()
	t.tm = w.curTime + timeout
	w.doAdd(w.curTime, t)
	return t
}

// Cancel removes t before it fires. It reports whether t was still pending;
// a nil Timer (one returned by an Add that fired synchronously) is a no-op
// that reports false.
func (w *Wheel) Cancel(t *Timer) bool {
	if t == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.slot == nil || t.canceled {
		return false
	}
	t.slot.Remove(t.elem)
	t.slot = nil
	t.canceled = true
	return true
}

// doAdd files timer into whichever section holds timers tm-curtime ticks
// out, mirroring original_source/TimerService.cpp's DoAdd cascade. Must be
// called with w.mu held.
func (w *Wheel) doAdd(curtime uint64, t *Timer) {
	dx := t.tm - curtime
	switch {
	case dx < section1Num:
		w.addSection1(t)
	case dx < section1Num*section2Num:
		w.addSection2(0, t)
	case dx < section1Num*section2Num*section2Num:
		w.addSection2(1, t)
	case dx < section1Num*section2Num*section2Num*section2Num:
		w.addSection2(2, t)
	default:
		w.addSection2(3, t)
	}
}

func (w *Wheel) addSection1(t *Timer) {
	i := t.tm & section1Mask
	slot := w.section1[i]
	t.slot = slot
	t.elem = slot.PushBack(t)
}

func (w *Wheel) addSection2(section int, t *Timer) {
	i := section2Index(t.tm, section)
	slot := &w.section2[section][i]
	t.slot = *slot
	t.elem = (*slot).PushBack(t)
}

// section2Index mirrors original_source/TimerService.cpp's
// GetSection2Index: shift off section-1's bits plus section-2's bits for
// every coarser level already passed, then mask to 64 slots.
func section2Index(tm uint64, section int) uint64 {
	tm >>= uint(section1Bits + section2Bits*section)
	return tm & section2Mask
}

// tickSection2 re-files every timer in section `section`'s slot for curtime
// down into a finer section (or fires it, if it now lands in section1),
// mirroring original_source/TimerService.cpp's TickSection2. It reports
// whether the visited slot was index 0, the cascade-further signal. Must be
// called with w.mu held.
func (w *Wheel) tickSection2(curtime uint64, section int) bool {
	i := section2Index(curtime, section)
	slot := w.section2[section][i]

	var pending []*Timer
	for e := slot.Front(); e != nil; e = e.Next() {
		pending = append(pending, e.Value.(*Timer))
	}
	slot.Init()

	for _, t := range pending {
		t.slot = nil
		t.elem = nil
		w.doAdd(curtime, t)
	}

	return i == 0
}

// Advance ticks the wheel forward by one Period and fires every timer whose
// deadline lands on the new tick, mirroring original_source/
// TimerService.cpp's Update. Intended to be called roughly once per Period
// by the runtime's timer-driving goroutine; callers pass the fired
// callbacks' effects to the scheduler (e.g. wakeupLocked(EventSleep))
// outside of Advance itself, since fired callbacks run without w.mu held.
func (w *Wheel) Advance() {
	w.mu.Lock()
	w.curTime++
	curtime := w.curTime

	section1I := curtime & section1Mask
	if section1I == 0 &&
		w.tickSection2(curtime, 0) &&
		w.tickSection2(curtime, 1) &&
		w.tickSection2(curtime, 2) {
		w.tickSection2(curtime, 3)
	}

	slot := w.section1[section1I]
	var fired []*Timer
	for e := slot.Front(); e != nil; e = e.Next() {
		t := e.Value.(*Timer)
		t.slot = nil
		t.elem = nil
		fired = append(fired, t)
	}
	slot.Init()
	w.mu.Unlock()

	for _, t := range fired {
		t.cb()
	}
}
