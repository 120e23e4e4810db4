package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/steveyegge/cockpit/internal/remediate"
	"github.com/steveyegge/cockpit/internal/types"
)

var failedJobHeaders = []string{"Engine", "Timestamp", "Process", "Activity", "Process Instance Id", "Exception Message"}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(MutedStyle).
		BorderColumn(false).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// FailedJobsTable renders failed jobs as a table. It returns "" for an empty
// list so that nothing at all, not even a header, is printed.
func FailedJobsTable(jobs []types.FailedJob, messageWidth int) string {
	if len(jobs) == 0 {
		return ""
	}
	if messageWidth <= 0 {
		messageWidth = DefaultMessageWidth
	}
	t := newTable(failedJobHeaders...)
	for _, fj := range jobs {
		t.Row(
			fj.ProcessEngine,
			fj.IncidentTimestamp.String(),
			fj.ProcessDefinitionKey,
			fj.ActivityID,
			fj.ProcessInstanceID,
			Summarize(fj.ExceptionText(), messageWidth),
		)
	}
	return t.Render() + "\n"
}

// StatisticsTable renders per-definition statistics, or "" when empty.
func StatisticsTable(engineName string, stats []types.Statistics) string {
	if len(stats) == 0 {
		return ""
	}
	t := newTable("Engine", "Process", "Definition", "Instances", "Failed Jobs", "Incidents")
	for _, s := range stats {
		key := s.Definition.Key
		if key == "" {
			key = s.ID
		}
		failedJobs := strconv.Itoa(s.FailedJobs)
		if s.FailedJobs > 0 {
			failedJobs = RenderFail(failedJobs)
		}
		t.Row(
			engineName,
			key,
			s.Definition.ID,
			strconv.Itoa(s.Instances),
			failedJobs,
			strconv.Itoa(s.TotalIncidents()),
		)
	}
	return t.Render() + "\n"
}

// ItemLine renders the one-line report of a retry, cancel or lookup.
func ItemLine(item remediate.ItemResult) string {
	var b strings.Builder
	b.WriteString(RenderStatusIcon(item.Status))
	b.WriteString(" ")
	if item.Depth > 0 {
		b.WriteString(strings.Repeat("  ", item.Depth-1))
		b.WriteString(RenderMuted(TreeChild))
	}
	b.WriteString(itemText(item))
	switch {
	case item.Error != "":
		b.WriteString(RenderFail(" - " + Summarize(item.Error, DefaultMessageWidth)))
	case item.Reason != "":
		b.WriteString(RenderMuted(" (" + item.Reason + ")"))
	}
	return b.String()
}

func itemText(item remediate.ItemResult) string {
	switch item.Kind {
	case remediate.KindRetry:
		if item.Status == remediate.StatusFailed {
			return fmt.Sprintf("could not retry job %s of process instance %s", item.JobID, item.ProcessInstanceID)
		}
		return fmt.Sprintf("resolved incident for process instance %s execution %s and job %s",
			item.ProcessInstanceID, item.ExecutionID, item.JobID)
	case remediate.KindCancel:
		switch item.Status {
		case remediate.StatusFailed:
			return "could not cancel process instance " + item.ProcessInstanceID
		case remediate.StatusSkipped:
			return "skipped process instance " + item.ProcessInstanceID
		default:
			return "canceled process instance id " + item.ProcessInstanceID
		}
	case remediate.KindLookup:
		return "could not look up parents of process instance " + item.ProcessInstanceID
	default:
		return string(item.Kind) + " " + item.ProcessInstanceID
	}
}

// Summary renders the closing line for one engine's outcome.
func Summary(out *remediate.Outcome) string {
	if out == nil {
		return ""
	}
	ok, failed, skipped := out.Count(remediate.StatusOK), out.Count(remediate.StatusFailed), out.Count(remediate.StatusSkipped)
	parts := []string{RenderPass(fmt.Sprintf("%d ok", ok))}
	if failed > 0 {
		parts = append(parts, RenderFail(fmt.Sprintf("%d failed", failed)))
	}
	if skipped > 0 {
		parts = append(parts, RenderMuted(fmt.Sprintf("%d skipped", skipped)))
	}
	return fmt.Sprintf("%s %s: %s", RenderAccent(out.Engine), out.Action, strings.Join(parts, ", "))
}

// Table renders a plain table with the standard cockpit look, or "" when
// there are no rows.
func Table(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	t := newTable(headers...)
	for _, row := range rows {
		t.Row(row...)
	}
	return t.Render() + "\n"
}
