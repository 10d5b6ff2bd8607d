// Package nonce implements the pod's deterministic nonce generator: a
// 16-entry rolling table of 32-bit words, seeded from the pod's lot and
// tid identifiers, that both the controller and the pod advance in
// lockstep so every command can be authenticated without a handshake.
package nonce

import "github.com/kaylen-rios/podcomms/internal/wire"

const tableSize = 16

// Generator reproduces the pod's nonce table. It is not safe for
// concurrent use: callers must only advance it from the session queue
// that owns the pod (see the session package).
type Generator struct {
	lot  uint32
	tid  uint32
	seed uint32

	table [2 + tableSize]uint32
	idx   uint8
}

// New builds a Generator seeded from lot, tid, and an optional 16-bit
// seed (0 if the pairing did not supply one), and fills its table.
func New(lot, tid uint32, seed uint16) *Generator {
	g := &Generator{lot: lot, tid: tid, seed: uint32(seed)}
	g.reseed(uint32(seed))
	return g
}

// reseed reinitializes table[0] and table[1] from lot/tid/seed, fills the
// rolling table with 16 calls to advance, and recomputes idx.
func (g *Generator) reseed(seed uint32) {
	seedLo := seed & 0xff
	seedHi := (seed >> 8) & 0xff
	g.table[0] = (g.lot&0xFFFF + g.lot>>16 + 0x55543DC3) + seedLo
	g.table[1] = (g.tid&0xFFFF + g.tid>>16 + 0xAAAAE44E) + seedHi
	for i := 0; i < tableSize; i++ {
		g.table[2+i] = g.advanceSeed()
	}
	g.idx = uint8((g.table[0] + g.table[1]) & 0x0F)
}

// advanceSeed steps the two seed words forward and returns the word they
// produce. It mutates table[0] and table[1] but not the rolling table
// itself; callers store the result where they need it.
func (g *Generator) advanceSeed() uint32 {
	g.table[0] = (g.table[0] >> 16) + (g.table[0]&0xFFFF)*0x5D7F
	g.table[1] = (g.table[1] >> 16) + (g.table[1]&0xFFFF)*0x8CA0
	return g.table[1] + ((g.table[0] & 0xFFFF) << 16)
}

// CurrentNonce returns the nonce the next command should carry, without
// consuming it.
func (g *Generator) CurrentNonce() uint32 {
	return g.table[2+g.idx]
}

// AdvanceToNextNonce consumes CurrentNonce and rolls the table forward by
// one entry: every message that carries a nonce-bearing block
// must call this before constructing the message.
func (g *Generator) AdvanceToNextNonce() {
	current := g.CurrentNonce()
	g.table[2+g.idx] = g.advanceSeed()
	g.idx = uint8(current & 0x0F)
}

// Snapshot returns the generator's rolling table (the 16 nonce entries,
// not the two internal seed words) and its current index, for
// persistence. The returned slice is a copy.
func (g *Generator) Snapshot() ([]uint32, uint8) {
	table := make([]uint32, tableSize)
	copy(table, g.table[2:])
	return table, g.idx
}

// Restore reconstructs a Generator from a previously persisted table and
// index, bypassing the seeding algorithm. lot and tid are still required
// so a later Resync can recompute its seed correctly.
func Restore(lot, tid uint32, table []uint32, idx uint8) *Generator {
	g := &Generator{lot: lot, tid: tid}
	n := copy(g.table[2:], table)
	if n < tableSize || idx >= tableSize {
		// Malformed persisted state: fall back to a fresh table rather
		// than operate on a partially-restored one.
		g.reseed(0)
		return g
	}
	g.idx = idx
	return g
}

// Resync reseeds the table after a badNonce response. syncWord is the
// value the pod reported as its expected nonce salt; sentNonce is the
// nonce the controller actually sent; messageSeq is that message's
// sequence number. The new seed ties all three together with the CRC16
// table shared with the wire protocol, so both sides land on the same
// reseed without exchanging further state.
func (g *Generator) Resync(syncWord uint16, sentNonce uint32, messageSeq uint8) {
	crc := uint32(wire.CRC16Table[messageSeq])
	sum := sentNonce + crc + (g.lot & 0xFFFF) + (g.tid & 0xFFFF)
	seed := (sum & 0xFFFF) ^ uint32(syncWord)
	g.reseed(seed)
}
