// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package hash provides the keyed 64-bit hashing of the file format.
//
// The format authenticates chunk headers, chunk bodies and block headers
// with HighwayHash-64 under a fixed key, domain-separated per use. The
// key is part of the file format and must never change.
package hash

import (
	"github.com/minio/highwayhash"

	"github.com/jimsdog/riegeli/chain"
)

// formatKey is the 32-byte HighwayHash key of the file format.
var formatKey = []byte("Riegeli/records\nRiegeli/records\n")

// Domains separate the three uses of the hash so a value computed for one
// field can never validate another.
const (
	domainHeader byte = 0x00
	domainBody   byte = 0x01
	domainBlock  byte = 0x02
)

func domainKey(domain byte) []byte {
	key := make([]byte, len(formatKey))
	copy(key, formatKey)
	key[len(key)-1] ^= domain

	return key
}

var (
	headerKey = domainKey(domainHeader)
	bodyKey   = domainKey(domainBody)
	blockKey  = domainKey(domainBlock)
)

// HeaderHash hashes the hashed region of a chunk header.
func HeaderHash(p []byte) uint64 {
	return highwayhash.Sum64(p, headerKey)
}

// BodyBytesHash hashes a contiguous chunk body.
func BodyBytesHash(p []byte) uint64 {
	return highwayhash.Sum64(p, bodyKey)
}

// BodyHash hashes a chunk body held in a chain without flattening it.
func BodyHash(c *chain.Chain) uint64 {
	h, err := highwayhash.New64(bodyKey)
	if err != nil {
		// the key length is fixed at 32 bytes, New64 cannot fail
		panic(err)
	}

	for _, b := range c.Blocks() {
		h.Write(b) //nolint:errcheck // hash writes cannot fail
	}

	return h.Sum64()
}

// BlockHash hashes the payload of a block header under the given seed.
func BlockHash(seed byte, payload []byte) uint64 {
	h, err := highwayhash.New64(blockKey)
	if err != nil {
		panic(err)
	}

	h.Write([]byte{seed}) //nolint:errcheck
	h.Write(payload)      //nolint:errcheck

	return h.Sum64()
}
