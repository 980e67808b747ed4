package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/logic/pipeline"
	"github.com/cjeanneret/CubeGo/internal/session"
	"github.com/cjeanneret/CubeGo/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// stickerColors maps palette labels to terminal colors.
var stickerColors = map[string]lipgloss.Color{
	"green":  "#009E60",
	"orange": "#FF5800",
	"white":  "#FFFFFF",
	"blue":   "#0051BA",
	"red":    "#C41E3A",
	"yellow": "#FFD500",
}

func sticker(letter byte, palette cube.Palette) string {
	s := lipgloss.NewStyle().Foreground(lipgloss.Color("0"))
	if c, ok := stickerColors[palette[cube.Face(letter)]]; ok {
		s = s.Background(c)
	}
	return s.Render(" " + string(letter) + " ")
}

// faceRow renders one row of three stickers of a face.
func faceRow(f cube.Facelets, face cube.Face, row int, palette cube.Palette) string {
	base := face.Index()*9 + row*3
	var b strings.Builder
	for i := 0; i < 3; i++ {
		b.WriteString(sticker(f[base+i], palette))
	}
	return b.String()
}

// renderNet draws the unfolded cube:
//
//	    U
//	L   F   R   B
//	    D
func renderNet(f cube.Facelets, palette cube.Palette) string {
	pad := strings.Repeat(" ", 9)
	var lines []string
	for r := 0; r < 3; r++ {
		lines = append(lines, pad+faceRow(f, cube.Up, r, palette))
	}
	for r := 0; r < 3; r++ {
		lines = append(lines, faceRow(f, cube.Left, r, palette)+
			faceRow(f, cube.Front, r, palette)+
			faceRow(f, cube.Right, r, palette)+
			faceRow(f, cube.Back, r, palette))
	}
	for r := 0; r < 3; r++ {
		lines = append(lines, pad+faceRow(f, cube.Down, r, palette))
	}
	return strings.Join(lines, "\n")
}

// renderPlan lists the solution and the commands it translates to.
func renderPlan(plan *pipeline.Plan) string {
	var b strings.Builder
	if plan.Facelets != "" {
		fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Facelets:"), plan.Facelets)
	}
	fmt.Fprintf(&b, "%s %s (%d moves)\n", titleStyle.Render("Solution:"), plan.Solution(), len(plan.Tokens))
	lines := make([]string, len(plan.Commands))
	for i, c := range plan.Commands {
		lines[i] = c.String()
	}
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Commands:"), strings.Join(lines, " "))
	if len(plan.Skipped) > 0 {
		fmt.Fprintf(&b, "%s %s\n", failStyle.Render("Skipped:"), strings.Join(plan.Skipped, " "))
	}
	return b.String()
}

// renderReport summarizes an executed plan in a box.
func renderReport(res *pipeline.Result) string {
	if res == nil {
		return ""
	}
	rep := res.Report
	state := okStyle.Render(rep.State.String())
	if rep.State != session.Completed {
		state = failStyle.Render(rep.State.String())
	}
	lines := []string{
		fmt.Sprintf("State:    %s", state),
		fmt.Sprintf("Acked:    %d/%d", rep.Acked, rep.Total),
	}
	if rep.FailedAt >= 0 {
		lines = append(lines, fmt.Sprintf("Failed:   command %d", rep.FailedAt+1))
	}
	if rep.Err != nil {
		lines = append(lines, fmt.Sprintf("Error:    %v", rep.Err))
	}
	if res.RunID != "" {
		lines = append(lines, dimStyle.Render("Run:      "+res.RunID))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderRuns(runs []store.Run) string {
	if len(runs) == 0 {
		return dimStyle.Render("no runs recorded")
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Kind,
			r.State,
			fmt.Sprintf("%d/%d", r.Acked, r.Total),
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "STARTED", "KIND", "STATE", "ACKED", "DURATION").
		Rows(rows...).
		String()
}

func renderRunDetail(run *store.Run, cmds []store.Command) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s, %s)\n", titleStyle.Render("Run"), run.RunID, run.Kind, run.State)
	if run.Facelets != "" {
		fmt.Fprintf(&b, "Facelets: %s\n", run.Facelets)
	}
	fmt.Fprintf(&b, "Solution: %s\n", run.Solution)
	if run.Error != "" {
		fmt.Fprintf(&b, "Error:    %s\n", failStyle.Render(run.Error))
	}

	rows := make([][]string, 0, len(cmds))
	for _, c := range cmds {
		latency := ""
		if c.RepliedAt != nil {
			latency = c.RepliedAt.Sub(c.SentAt).Round(time.Millisecond).String()
		}
		outcome := c.Reply
		if c.Error != "" {
			outcome = c.Error
		}
		rows = append(rows, []string{fmt.Sprint(c.Seq + 1), c.Line, outcome, latency})
	}
	b.WriteString(table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "COMMAND", "REPLY", "LATENCY").
		Rows(rows...).
		String())
	return b.String()
}
