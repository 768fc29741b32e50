// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath     string
	logLevel       string
	logDir         string
	style          string
	cacheDir       string
	noCache        bool
	traceExporter  string
	metricExporter string
}

// analysisFlags mirror config.Analysis. Only flags set on the command line
// override the configuration file.
type analysisFlags struct {
	contract   bool
	parallel   bool
	modularise bool
	catalog    bool
	bitKey     bool
	threads    int
}

// modelFlags select the input model.
type modelFlags struct {
	input  string
	output string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "fta",
		Short: "Minimal cutset analysis of fault trees",
		Long: `fta loads fault tree models, computes the minimal cutsets of every
tree and writes them as HiP-HOPS CutSets documents. Results can be
validated against reference files and cached between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.logDir, "log-dir", "", "Also write JSON logs to this directory")
	pf.StringVar(&g.style, "style", "", "Output style: full, standard, minimal, machine (default: detected)")
	pf.StringVar(&g.cacheDir, "cache-dir", "", "Result cache directory (overrides store.dir)")
	pf.BoolVar(&g.noCache, "no-cache", false, "Do not read or write the result cache")
	pf.StringVar(&g.traceExporter, "trace-exporter", "", "Trace exporter: none, stdout, otlp")
	pf.StringVar(&g.metricExporter, "metric-exporter", "", "Metric exporter: none, stdout, prometheus")

	root.AddCommand(
		newAnalyseCmd(g),
		newValidateCmd(g),
		newModulesCmd(g),
		newDotCmd(g),
		newConvertCmd(g),
		newCacheCmd(g),
		newWatchCmd(g),
	)
	return root
}

func addModelFlags(cmd *cobra.Command, m *modelFlags, outputUsage string) {
	cmd.Flags().StringVarP(&m.input, "input", "i", "", "Model file (.xml, .yaml, .yml, .json, .jsonc)")
	cmd.Flags().StringVarP(&m.output, "output", "o", "", outputUsage)
	_ = cmd.MarkFlagRequired("input")
}

func addAnalysisFlags(cmd *cobra.Command, a *analysisFlags) {
	f := cmd.Flags()
	f.BoolVarP(&a.contract, "contract", "c", true, "Contract pass gates and same-logic chains before analysis")
	f.BoolVarP(&a.parallel, "parallel", "p", false, "Compute gate children and redundancy scans concurrently")
	f.BoolVarP(&a.modularise, "modularise", "m", true, "Pack independent subtrees into module events")
	f.BoolVar(&a.catalog, "catalog", true, "Store cutsets in event-indexed catalogs instead of flat lists")
	f.BoolVar(&a.bitKey, "bitkey", true, "Compare cutsets with bit keys")
	f.IntVarP(&a.threads, "threads", "t", 0, "Worker goroutines per fan-out (0 = number of CPUs)")
}

func newAnalyseCmd(g *globalFlags) *cobra.Command {
	var (
		m         modelFlags
		a         analysisFlags
		cutsetDir string
	)
	cmd := &cobra.Command{
		Use:   "analyse",
		Short: "Compute the minimal cutsets of every tree in a model",
		Long: `Computes the minimal cutsets of every tree and prints one summary line
per tree. With --output the cutsets of all trees are written as one
CutSets document; with --cutset-dir one CutSets(<id>).xml per tree is
written, in the layout read by "fta validate".`,
		Aliases: []string{"analyze"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyse(cmd, g, &a, &m, cutsetDir)
		},
	}
	addModelFlags(cmd, &m, "Write all cutsets to this CutSets XML file")
	addAnalysisFlags(cmd, &a)
	cmd.Flags().StringVar(&cutsetDir, "cutset-dir", "", "Write one CutSets(<tree id>).xml per tree to this directory")
	return cmd
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	var (
		m   modelFlags
		a   analysisFlags
		ref string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compare computed cutsets with reference CutSets files",
		Long: `Analyses the model and compares every tree with <reference>/CutSets(<tree id>).xml.
The summary counts and the cutset lists are checked when present. Exits
non-zero if any tree differs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, g, &a, &m, ref)
		},
	}
	addModelFlags(cmd, &m, "Also write all cutsets to this CutSets XML file")
	addAnalysisFlags(cmd, &a)
	cmd.Flags().StringVarP(&ref, "reference", "r", "", "Directory holding CutSets(<tree id>).xml files")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func newModulesCmd(g *globalFlags) *cobra.Command {
	var (
		m        modelFlags
		contract bool
	)
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Write the tree structure with module flags and visit stamps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModules(cmd, g, &m, contract)
		},
	}
	addModelFlags(cmd, &m, "Write the XML report here instead of stdout")
	cmd.Flags().BoolVarP(&contract, "contract", "c", true, "Contract the model first")
	return cmd
}

func newDotCmd(g *globalFlags) *cobra.Command {
	var (
		m        modelFlags
		treeID   int
		contract bool
		opts     dotFlags
	)
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Render one tree as a Graphviz DOT graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDot(cmd, g, &m, treeID, contract, opts)
		},
	}
	addModelFlags(cmd, &m, "Write the DOT graph here instead of stdout")
	cmd.Flags().IntVar(&treeID, "tree", 0, "Tree ID to render (default: the first tree)")
	cmd.Flags().BoolVarP(&contract, "contract", "c", true, "Contract the model first")
	cmd.Flags().BoolVar(&opts.modules, "modules", true, "Highlight module gates")
	cmd.Flags().BoolVar(&opts.visits, "visits", false, "Show first/last visit stamps")
	return cmd
}

// dotFlags are the rendering switches of the dot command.
type dotFlags struct {
	modules bool
	visits  bool
}

func newConvertCmd(g *globalFlags) *cobra.Command {
	var m modelFlags
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a model to the native YAML or JSON document",
		Long:  `Converts a model without contraction. The output format follows the --output extension (.yaml, .yml or .json).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd, g, &m)
		},
	}
	addModelFlags(cmd, &m, "Output document (.yaml, .yml or .json)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	var (
		m        modelFlags
		contract bool
	)
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached results of a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheClear(cmd, g, &m, contract)
		},
	}
	clearCmd.Flags().StringVarP(&m.input, "input", "i", "", "Model file")
	clearCmd.Flags().BoolVarP(&contract, "contract", "c", true, "Match results cached for the contracted model")
	_ = clearCmd.MarkFlagRequired("input")

	cmd.AddCommand(clearCmd)
	return cmd
}
