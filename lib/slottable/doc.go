// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package slottable provides a growable indexed table that recycles the
// indices of released entries.
//
// [Table.Acquire] stores a value at the lowest free index, appending
// when no slot is free. [Table.Release] frees an index for future reuse.
// An index identifies its entry only while the entry is occupied: after
// Release(i), Get(i) reports nothing, and a later Acquire may hand
// the same i to an unrelated value. Holders must not keep an index past
// the release they triggered or observed. There is no generation tag;
// callers that need to detect reuse compare the stored value itself.
//
// The host runtime keeps its connected peers in a Table, and the
// signaling server keeps its client sessions in one, so peer ids and
// client ids stay small integers.
//
// A Table is not safe for concurrent use. Callers guard it with a
// sync.RWMutex: lookups under the read lock, Acquire and Release under
// the write lock.
package slottable
