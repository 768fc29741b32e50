// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import "errors"

var (
	// ErrUnresolvedReference is returned when a tree refers to an event or
	// gate ID that the document never declares.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrMissingAttribute is returned when a required attribute or element
	// is absent or unparsable.
	ErrMissingAttribute = errors.New("missing attribute")

	// ErrMalformedDocument is returned when the document structure or field
	// values are invalid.
	ErrMalformedDocument = errors.New("malformed model document")

	// ErrUnsupportedFormat is returned for file extensions Load cannot read.
	ErrUnsupportedFormat = errors.New("unsupported model format")

	// ErrFileTooLarge is returned when a model file exceeds MaxModelFileSize.
	ErrFileTooLarge = errors.New("model file too large")
)
