// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cutset

import "errors"

// Sentinel errors for cutset operations.
var (
	// ErrKeyspaceUnsized is returned when bit keys are enabled but the
	// engine was built without an event count to size them.
	ErrKeyspaceUnsized = errors.New("bit keys enabled without a sized keyspace")

	// ErrKeyspaceExhausted is returned when more module events are
	// requested than the keyspace reserved room for.
	ErrKeyspaceExhausted = errors.New("keyspace has no free module slots")

	// ErrNotModuleEvent is returned when a module group is requested from
	// a basic or normal event.
	ErrNotModuleEvent = errors.New("event is not a module event")

	// ErrInvalidEventKind is returned when a leaf is created with a kind
	// other than basic or normal. Module events come from NewModuleEvent.
	ErrInvalidEventKind = errors.New("invalid event kind")
)
