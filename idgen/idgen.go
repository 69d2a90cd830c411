// Copyright (c) 2023 BVK Chaitanya

package idgen

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/google/uuid"
)

// Generator derives client order ids for order lines from a per-run seed.
// Ids are a pure function of the seed and the line index, so a line that
// retries a placement always presents the same id to the venue.
type Generator struct {
	base uuid.UUID
}

func New(seed string) *Generator {
	return &Generator{base: uuid.UUID(md5.Sum([]byte(seed)))}
}

// LineIDs returns the buy and sell client order ids for the line index.
func (v *Generator) LineIDs(index uint64) (buy, sell uuid.UUID) {
	return v.derive(2 * index), v.derive(2*index + 1)
}

func (v *Generator) derive(n uint64) uuid.UUID {
	var buf [16 + 8]byte
	copy(buf[:16], v.base[:])
	binary.BigEndian.PutUint64(buf[16:], n)
	id := uuid.UUID(md5.Sum(buf[:]))
	// Mark as a version 3 (md5) RFC 4122 uuid.
	id[6] = (id[6] & 0x0f) | 0x30
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
