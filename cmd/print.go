package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/evotimetable/internal/fitness"
	"github.com/cwbudde/evotimetable/internal/timetable"
)

// printTimetable writes t as a table with one row per day and one column per
// time slot, in configured order.
func printTimetable(w io.Writer, t *timetable.Timetable) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := append([]string{"DAY"}, t.Slots()...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, day := range t.Days() {
		row := []string{day}
		for _, slot := range t.Slots() {
			subject, _ := t.Get(day, slot)
			row = append(row, subject)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// printBreakdown writes each rule's contribution and the resulting fitness.
func printBreakdown(w io.Writer, b fitness.Breakdown) error {
	if !b.Valid {
		_, err := fmt.Fprintln(w, "Fitness: invalid timetable (-Inf)")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tKIND\tRAW\tWEIGHT\tCONTRIBUTION")
	fmt.Fprintln(tw, "----\t----\t---\t------\t------------")
	fmt.Fprintf(tw, "base\t\t\t\t%+.2f\n", fitness.BaseScore)
	for _, r := range b.Rules {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%+.2f\n", r.Name, r.Kind, r.Raw, r.Weight, r.Weighted)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Fitness: %s\n", formatFitness(b.Fitness))
	return err
}

// formatFitness renders -Inf readably.
func formatFitness(f float64) string {
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	return fmt.Sprintf("%.2f", f)
}
