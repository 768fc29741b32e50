// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// PersonalityEnv overrides the detected personality level.
const PersonalityEnv = "FTA_PERSONALITY"

// PersonalityLevel sets how rich the output is.
type PersonalityLevel string

const (
	// PersonalityFull adds boxes and per-order breakdowns to the standard
	// output.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard uses colours, icons and bordered tables.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons without colour-heavy decoration.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine prints plain tab-aligned text for scripts.
	PersonalityMachine PersonalityLevel = "machine"
)

// ParsePersonalityLevel maps a name or abbreviation to a level. Unknown
// names give PersonalityStandard.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "plain", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// DetectPersonality picks a level from FTA_PERSONALITY, falling back to
// machine output when f is not a terminal and standard otherwise.
func DetectPersonality(f *os.File) PersonalityLevel {
	if env := os.Getenv(PersonalityEnv); env != "" {
		return ParsePersonalityLevel(env)
	}
	if f == nil || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return PersonalityMachine
	}
	return PersonalityStandard
}
