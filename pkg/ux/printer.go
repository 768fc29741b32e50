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
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianFTA/services/fta/export"
	"github.com/AleutianAI/AleutianFTA/services/fta/validate"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer writes command output at one personality level.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w     io.Writer
	level PersonalityLevel
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, level PersonalityLevel) *Printer {
	return &Printer{w: w, level: level}
}

// Level returns the printer's personality level.
func (p *Printer) Level() PersonalityLevel { return p.level }

func (p *Printer) machine() bool { return p.level == PersonalityMachine }

// Title prints a heading. Machine output has no headings.
func (p *Printer) Title(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Status prints one line led by an icon, or by OK/WARN/ERROR/INFO in
// machine output.
func (p *Printer) Status(icon Icon, text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.w, "%s: %s\n", icon.machineTag(), text)
	case PersonalityMinimal:
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
	default:
		style := lipgloss.NewStyle()
		switch icon {
		case IconSuccess:
			style = Styles.Success
		case IconWarning:
			style = Styles.Warning
		case IconError:
			style = Styles.Error
		}
		fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
	}
}

// Success prints a success line.
func (p *Printer) Success(text string) { p.Status(IconSuccess, text) }

// Warning prints a warning line.
func (p *Printer) Warning(text string) { p.Status(IconWarning, text) }

// Error prints an error line.
func (p *Printer) Error(text string) { p.Status(IconError, text) }

// Box prints content under a title in a rounded box.
func (p *Printer) Box(title, content string) {
	if p.machine() {
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
}

// Trees prints the per-tree analysis table followed by the totals.
//
// Description:
//
//	Machine output is export.WriteReport's tab-aligned text. Other levels
//	draw a bordered lipgloss table; full output adds a box with the
//	per-order breakdown of every tree.
func (p *Printer) Trees(rows []export.TreeSummary, total time.Duration, comparisons int64) error {
	if p.machine() {
		return export.WriteReport(p.w, rows, total, comparisons)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Border).
		Headers("TREE", "NAME", "CUTSETS", "MODULES", "TIME").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return Styles.Header
			case col == 1:
				return Styles.Cell
			default:
				return Styles.Number
			}
		})
	for _, r := range rows {
		t.Row(
			strconv.Itoa(r.TreeID),
			r.Name,
			strconv.Itoa(r.Cutsets),
			strconv.Itoa(r.Modules),
			r.Duration.Round(time.Microsecond).String(),
		)
	}
	fmt.Fprintln(p.w, t.String())

	if p.level == PersonalityFull && len(rows) > 0 {
		var sb strings.Builder
		for i, r := range rows {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%s %d %s %s", IconBullet, r.TreeID, IconArrow, orderLine(r))
		}
		fmt.Fprintln(p.w, Styles.Box.Render(Styles.Subtitle.Render("Cutsets by order")+"\n"+sb.String()))
	}

	_, err := fmt.Fprintf(p.w, "%s %s   %s %s\n",
		Styles.Muted.Render("Total analysis time:"), Styles.Highlight.Render(total.Round(time.Microsecond).String()),
		Styles.Muted.Render("Cutset comparisons:"), Styles.Highlight.Render(strconv.FormatInt(comparisons, 10)),
	)
	return err
}

func orderLine(r export.TreeSummary) string {
	parts := make([]string, 0, len(r.ByOrder))
	for _, o := range r.Orders() {
		parts = append(parts, fmt.Sprintf("order %d: %d", o, r.ByOrder[o]))
	}
	if len(parts) == 0 {
		return "no cutsets"
	}
	return strings.Join(parts, ", ")
}

// Validation prints one status line per report and returns the number of
// invalid reports.
func (p *Printer) Validation(reports []*validate.Report) int {
	failed := 0
	for _, rep := range reports {
		if rep.Valid() {
			p.Success(rep.String())
			continue
		}
		failed++
		p.Error(rep.String())
		if p.machine() || p.level == PersonalityMinimal {
			continue
		}
		for _, m := range rep.Orders {
			fmt.Fprintf(p.w, "    order %d: got %d, want %d\n", m.Order, m.Got, m.Want)
		}
		for _, ids := range rep.Missing {
			fmt.Fprintf(p.w, "    %s %v\n", Styles.Error.Render("missing"), ids)
		}
		for _, ids := range rep.Extra {
			fmt.Fprintf(p.w, "    %s %v\n", Styles.Warning.Render("extra"), ids)
		}
	}
	return failed
}
