// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fta computes the minimal cutsets of fault trees.
//
// Usage:
//
//	fta analyse -i FaultTrees.xml -o output.xml
//	fta analyse -i model.yaml --parallel --threads 8
//	fta validate -i FaultTrees.xml --reference ./reference
//	fta modules -i FaultTrees.xml -o modules.xml
//	fta dot -i model.yaml --tree 7 | dot -Tsvg > tree7.svg
//	fta convert -i FaultTrees.xml -o model.yaml
//	fta cache clear -i FaultTrees.xml
//	fta watch -i model.yaml --cache-dir ~/.cache/fta
//
// Models are HiP-HOPS FaultTrees XML (.xml) or native documents (.yaml,
// .yml, .json, .jsonc). Settings come from --config (YAML), overridden by
// flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
