// Package wire implements the on-air message codec shared by every
// layer of the pod communication session core: the Message envelope,
// its length-prefixed block sub-format, and the CRC16 used both for
// message integrity and for the nonce generator's resync algorithm.
//
// This package has no knowledge of session state, nonces, or doses — it
// only knows how to turn typed blocks into bytes and back: a
// dependency-free codec leaf that higher layers build on.
package wire
