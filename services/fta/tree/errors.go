// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import "errors"

// Sentinel errors for model building and analysis.
var (
	// ErrDuplicateNode is returned when a node ID is added twice.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrUnknownNode is returned when a handle or ID does not name a node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidGate is returned for gates without children, pass gates
	// with more than one child, or leaves given children.
	ErrInvalidGate = errors.New("invalid gate")

	// ErrCycle is returned when the gate graph is not acyclic.
	ErrCycle = errors.New("model contains a cycle")

	// ErrWorkerPanic is returned when a generation worker panicked.
	ErrWorkerPanic = errors.New("generation worker panicked")
)
