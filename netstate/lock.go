package netstate

import (
	g "github.com/anacrolix/generics"
	"github.com/anacrolix/missinggo/v2/panicif"
	xsync "github.com/anacrolix/sync"
)

// deferredMutex wraps a RWMutex and runs deferred actions once, still under
// the lock, as the matching Unlock returns. SaveEdges uses this to batch a
// routing-table rebuild across several edges into a single
// events.RoutingTableUpdate, no matter how many times link() would
// otherwise have asked for one.
type deferredMutex struct {
	internal      xsync.RWMutex
	unlockActions []func()
	uniqueActions map[any]struct{}
	allowDefers   bool
}

func (me *deferredMutex) Lock() {
	me.internal.Lock()
	panicif.True(me.allowDefers)
	me.allowDefers = true
}

func (me *deferredMutex) Unlock() {
	panicif.False(me.allowDefers)
	me.allowDefers = false
	me.runUnlockActions()
	me.internal.Unlock()
}

func (me *deferredMutex) RLock()   { me.internal.RLock() }
func (me *deferredMutex) RUnlock() { me.internal.RUnlock() }

// DeferUniqueUnaryFunc schedules action to run once, as this lock's current
// holder calls Unlock, deduplicating against key so a value that triggers
// the same notification from several call sites within one locked section
// only fires it once.
func (me *deferredMutex) DeferUniqueUnaryFunc(key any, action func()) {
	panicif.False(me.allowDefers)
	g.MakeMapIfNil(&me.uniqueActions)
	if g.MapContains(me.uniqueActions, key) {
		return
	}
	me.uniqueActions[key] = struct{}{}
	me.unlockActions = append(me.unlockActions, action)
}

func (me *deferredMutex) runUnlockActions() {
	for _, action := range me.unlockActions {
		action()
	}
	me.unlockActions = me.unlockActions[:0]
	me.uniqueActions = nil
}
