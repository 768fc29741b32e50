// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loader reads fault tree models from disk.
//
// Three formats are understood:
//
//   - HiP-HOPS results XML (.xml): FMEA event declarations plus FaultTree
//     elements whose And, Or, Event and deviation children form the trees.
//   - YAML documents (.yaml, .yml) with flat event, gate and tree lists.
//   - JSON with comments (.json, .jsonc) carrying the same document.
//
// Every loader returns a validated *tree.Model.
package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianFTA/services/fta/tree"
)

// MaxModelFileSize bounds how much of a model file is read.
const MaxModelFileSize = 256 << 20

// Format names a model file format.
type Format string

const (
	FormatHiPHOPS Format = "hiphops"
	FormatYAML    Format = "yaml"
	FormatJSONC   Format = "jsonc"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatHiPHOPS, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads the model at path.
//
// Inputs:
//   - path: A .xml, .yaml, .yml, .json or .jsonc file.
//
// Outputs:
//   - *tree.Model: The validated model.
//   - error: ErrUnsupportedFormat, ErrFileTooLarge, read errors, or
//     format-specific errors.
func Load(path string) (*tree.Model, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat model file: %w", err)
	}
	if info.Size() > MaxModelFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), MaxModelFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Read(io.LimitReader(f, MaxModelFileSize), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Read decodes a model in the given format.
func Read(r io.Reader, format Format) (*tree.Model, error) {
	switch format {
	case FormatHiPHOPS:
		return ReadHiPHOPS(r)
	case FormatYAML:
		doc, err := DecodeYAML(r)
		if err != nil {
			return nil, err
		}
		return doc.Build()
	case FormatJSONC:
		doc, err := DecodeJSONC(r)
		if err != nil {
			return nil, err
		}
		return doc.Build()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
