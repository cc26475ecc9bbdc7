package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"example.com/bblgate/internal/common"
	"example.com/bblgate/internal/report"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <log>",
		Short: "Decode a log and print a summary of frames and events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := buildSummary(a, args[0])
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func buildSummary(a *app, path string) (report.Summary, error) {
	p, err := a.open(path, nil)
	if err != nil {
		return report.Summary{}, err
	}
	digest, size, err := common.Sha256OfFile(path)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Build(p, digest, size)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(16)
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func renderSummary(out io.Writer, sum report.Summary) {
	row := func(label, value string, warn bool) string {
		style := valueStyle
		if warn {
			style = warnStyle
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), style.Render(value))
	}

	m := sum.Metadata
	logBox := []string{
		titleStyle.Render("Log"),
		row("File", sum.File, false),
		row("Log", fmt.Sprintf("%d of %d", sum.LogIndex, sum.LogCount), false),
		row("Firmware", strings.TrimSpace(m.FirmwareType+" "+m.FirmwareRevision), false),
		row("Craft", m.CraftName, false),
		row("Duration", (time.Duration(sum.DurationUs) * time.Microsecond).Round(time.Millisecond).String(), false),
		row("Iterations", fmt.Sprintf("%d to %d", sum.FirstIteration, sum.LastIteration), false),
	}

	decodeBox := []string{
		titleStyle.Render("Decoding"),
		row("Frames", strconv.Itoa(sum.FramesDecoded), false),
		row("Failed", strconv.Itoa(sum.FramesFailed), sum.FramesFailed > 0),
		row("Rejected", strconv.Itoa(sum.FramesRejected), sum.FramesRejected > 0),
		row("Skipped", fmt.Sprintf("%s of %s", common.FormatBytes(sum.BytesSkipped), common.FormatBytes(sum.DataBytes)), sum.BytesSkipped > 0),
		row("Resyncs", strconv.Itoa(sum.Resyncs), sum.Resyncs > 0),
		row("End of log", yesNo(sum.EndOfLog), !sum.EndOfLog),
		row("Truncated", yesNo(sum.Truncated), sum.Truncated),
	}

	frameBox := []string{titleStyle.Render("Frames")}
	for _, letter := range sum.FrameLetters() {
		fs := sum.Frames[letter]
		frameBox = append(frameBox, row(letter, fmt.Sprintf("%d decoded, %d failed, %d rejected, %d fields",
			fs.Decoded, fs.Failed, fs.Rejected, len(fs.Fields)), fs.Failed+fs.Rejected > 0))
	}

	eventBox := []string{titleStyle.Render("Events")}
	for _, name := range sum.EventNames() {
		eventBox = append(eventBox, row(name, strconv.Itoa(sum.Events[name]), false))
	}
	if len(sum.Events) == 0 {
		eventBox = append(eventBox, "none")
	}

	for _, box := range [][]string{logBox, decodeBox, frameBox, eventBox} {
		fmt.Fprintln(out, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, box...)))
	}
}
