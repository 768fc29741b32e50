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

import (
	"fmt"
	"strings"
)

// EventKind distinguishes the event variants.
type EventKind int

const (
	// BasicEvent is a primary failure leaf.
	BasicEvent EventKind = iota

	// NormalEvent is a leaf describing an expected condition. It takes part
	// in cutsets exactly like a basic event.
	NormalEvent

	// ModuleEvent stands for the packed cutsets of an independent subtree.
	ModuleEvent
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case BasicEvent:
		return "basic"
	case NormalEvent:
		return "normal"
	case ModuleEvent:
		return "module"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ParseEventKind maps a name from a model document onto a leaf kind.
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic", "basicevent":
		return BasicEvent, nil
	case "normal", "normalevent":
		return NormalEvent, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidEventKind, s)
	}
}

// Event is a leaf of a cutset.
//
// Events are created once, while the model is loaded or while a module gate
// is packed, and never change afterwards. Identity is the pointer; ID is the
// model-level identifier used in reports.
type Event struct {
	ID          int
	Name        string
	ShortName   string
	Description string
	Kind        EventKind

	// Bit is the event's position in every BitKey of the analysis.
	Bit int

	module Group
}

// NewEvent creates a basic or normal event.
func NewEvent(id int, kind EventKind, bit int) (*Event, error) {
	if kind != BasicEvent && kind != NormalEvent {
		return nil, fmt.Errorf("%w: %s for event %d", ErrInvalidEventKind, kind, id)
	}
	return &Event{ID: id, Kind: kind, Bit: bit}, nil
}

// IsModule reports whether the event packs a module's cutsets.
func (e *Event) IsModule() bool { return e.Kind == ModuleEvent }

// Module returns the packed cutsets of a module event.
func (e *Event) Module() (Group, error) {
	if e.Kind != ModuleEvent {
		return nil, fmt.Errorf("%w: %d", ErrNotModuleEvent, e.ID)
	}
	return e.module, nil
}

// Label returns the most descriptive short identifier available.
func (e *Event) Label() string {
	switch {
	case e.ShortName != "":
		return e.ShortName
	case e.Name != "":
		return e.Name
	case e.Kind == ModuleEvent:
		return fmt.Sprintf("M%d", e.ID)
	default:
		return fmt.Sprintf("E%d", e.ID)
	}
}

// String implements fmt.Stringer.
func (e *Event) String() string {
	return fmt.Sprintf("%s(%d)", e.Kind, e.ID)
}
