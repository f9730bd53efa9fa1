/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/allbin/go-serialwait"
	"github.com/allbin/go-serialwait/internal/tui/colors"
	"github.com/allbin/go-serialwait/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the wait instruction for a point in time",
	Long: `Compute how long a waiter would sleep, without touching any descriptor.

All instants are monotonic microseconds. Leave out --deadline for a wait
without one; leave out --poll-ms (or pass 0) to disable polling. With
neither, no instruction exists and the command fails.

--sweep renders a table of instructions while "now" advances by --step
microseconds per row.

Examples:
  serialwait plan --now 1000000 --deadline 1500000
  serialwait plan --now 1000000 --deadline 1500000 --poll-ms 100
  serialwait plan --now 0 --poll-ms 250
  serialwait plan --now 0 --deadline 1000000 --poll-ms 300 --sweep 6 --step 200000`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		now, _ := cmd.Flags().GetInt64("now")
		pollMs, _ := cmd.Flags().GetInt64("poll-ms")
		sweep, _ := cmd.Flags().GetInt("sweep")
		step, _ := cmd.Flags().GetInt64("step")

		deadline := serialwait.NoDeadline()
		if cmd.Flags().Changed("deadline") {
			at, _ := cmd.Flags().GetInt64("deadline")
			deadline = serialwait.DeadlineAt(serialwait.Instant(at))
		}
		poll := serialwait.PollEvery(pollMs)

		if sweep > 0 {
			fmt.Println(renderSweep(sweepPlans(serialwait.Instant(now), deadline, poll, sweep, step)))
			return
		}

		p := computePlan(serialwait.Instant(now), deadline, poll)
		fmt.Println(formatPlan(p))
		if p.Err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().Int64("now", 0, "Current monotonic time in microseconds")
	planCmd.Flags().Int64("deadline", 0, "Absolute deadline in microseconds (omit for none)")
	planCmd.Flags().Int64("poll-ms", 0, "Poll period in milliseconds (0 disables polling)")
	planCmd.Flags().Int("sweep", 0, "Number of rows to render while advancing now")
	planCmd.Flags().Int64("step", 100_000, "Microseconds now advances per sweep row")
}

type plan struct {
	Now         serialwait.Instant
	Deadline    serialwait.Deadline
	Poll        serialwait.PollPeriod
	Instruction serialwait.WaitInstruction
	Err         error
}

func computePlan(now serialwait.Instant, deadline serialwait.Deadline, poll serialwait.PollPeriod) plan {
	instr, err := serialwait.ComputeWaitInterval(now, deadline, poll)
	return plan{Now: now, Deadline: deadline, Poll: poll, Instruction: instr, Err: err}
}

// sweepPlans evaluates count instants starting at now, step apart
func sweepPlans(now serialwait.Instant, deadline serialwait.Deadline, poll serialwait.PollPeriod, count int, step int64) []plan {
	plans := make([]plan, 0, count)
	for i := 0; i < count; i++ {
		plans = append(plans, computePlan(now+serialwait.Instant(int64(i)*step), deadline, poll))
	}
	return plans
}

// describe renders the decision in plain words
func (p plan) describe() string {
	switch {
	case errors.Is(p.Err, serialwait.ErrNoWakeupStrategy):
		return "no wakeup strategy"
	case p.Err != nil:
		return p.Err.Error()
	case p.Instruction.Forever():
		return "block until woken"
	}
	d, _ := p.Instruction.Duration()
	if d == 0 {
		return "check once, do not sleep"
	}
	return fmt.Sprintf("sleep %v", d)
}

func formatPlan(p plan) string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("wait plan"))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(styles.LabelStyle.Render(fmt.Sprintf("  %-10s", label)))
		b.WriteString(styles.ValueStyle.Render(value))
		b.WriteString("\n")
	}
	row("now", fmt.Sprintf("%dµs", int64(p.Now)))
	row("deadline", p.Deadline.String())
	row("poll", p.Poll.String())

	if p.Err != nil {
		row("result", styles.ErrorStyle.Render(p.describe()))
		return strings.TrimRight(b.String(), "\n")
	}

	sec, usec := p.Instruction.Timeval()
	row("result", styles.InfoStyle.Render(p.describe()))
	if !p.Instruction.Forever() {
		row("timeval", fmt.Sprintf("{sec: %d, usec: %d}", sec, usec))
	}
	return strings.TrimRight(b.String(), "\n")
}

const (
	columnKeyNow      = "now"
	columnKeyLeft     = "left"
	columnKeyWait     = "wait"
	columnKeyDecision = "decision"
)

func renderSweep(plans []plan) string {
	rows := make([]table.Row, 0, len(plans))
	for _, p := range plans {
		left := "-"
		if at, ok := p.Deadline.At(); ok {
			left = at.Sub(p.Now).String()
		}
		wait := "-"
		if p.Err == nil {
			wait = p.Instruction.String()
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyNow:      fmt.Sprintf("%dµs", int64(p.Now)),
			columnKeyLeft:     left,
			columnKeyWait:     wait,
			columnKeyDecision: p.describe(),
		}))
	}

	return table.New([]table.Column{
		table.NewColumn(columnKeyNow, "Now", 16),
		table.NewColumn(columnKeyLeft, "Until deadline", 16),
		table.NewColumn(columnKeyWait, "Instruction", 20),
		table.NewColumn(columnKeyDecision, "Decision", 26),
	}).
		WithRows(rows).
		BorderRounded().
		WithBaseStyle(lipgloss.NewStyle().
			Foreground(colors.Text).
			BorderForeground(colors.Surface2).
			Align(lipgloss.Left)).
		View()
}
