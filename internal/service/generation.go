package service

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const generationSlots = 256

// writeGenerations counts cart writes per user. Users share hashed slots, so
// a bump may also invalidate a neighbour's in-flight read; that only costs a
// skipped cache fill.
type writeGenerations struct {
	slots [generationSlots]atomic.Uint64
}

func (g *writeGenerations) slot(username string) *atomic.Uint64 {
	return &g.slots[xxhash.Sum64String(username)%generationSlots]
}

func (g *writeGenerations) current(username string) uint64 {
	return g.slot(username).Load()
}

func (g *writeGenerations) bump(username string) {
	g.slot(username).Add(1)
}
