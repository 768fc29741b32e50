// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
	"github.com/zeebo/blake3"
)

// fingerprintContext separates model fingerprints from other BLAKE3 uses.
const fingerprintContext = "aleutian-fta 2025 model fingerprint v1"

// Fingerprint is a BLAKE3 digest of a model's structure.
type Fingerprint [32]byte

// String returns the lowercase hex form.
func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// FingerprintModel digests the structure of m.
//
// Description:
//
//	Covers every node in arena order (ID, kind, child IDs) and every tree
//	(ID, root ID). Names and descriptions are left out: they do not change
//	cutsets. Two models built in the same order from the same document
//	always share a fingerprint.
func FingerprintModel(m *tree.Model) Fingerprint {
	h := blake3.NewDeriveKey(fingerprintContext)
	var buf []byte
	put := func(v int) {
		buf = binary.AppendVarint(buf, int64(v))
	}

	put(m.Len())
	for i := 0; i < m.Len(); i++ {
		n := m.Node(tree.Handle(i))
		put(n.ID)
		put(int(n.Kind))
		put(len(n.Children))
		for _, c := range n.Children {
			put(m.Node(c).ID)
		}
	}
	trees := m.Trees()
	put(len(trees))
	for _, t := range trees {
		put(t.ID)
		put(m.Node(t.Root).ID)
	}
	_, _ = h.Write(buf)

	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}
