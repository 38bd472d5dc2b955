package notify

import (
	"fmt"
	"strings"

	"github.com/zulandar/planyard/internal/models"
)

// ProjectVersionEvent describes a newly recorded project version.
func ProjectVersionEvent(p *models.Project, pv *models.ProjectVersion, author string) Event {
	return Event{
		Title: fmt.Sprintf("Project %s %s is now version %s", p.ProjectID, p.Name, pv.Version),
		Body:  pv.Changes,
		Color: ColorInfo,
		Fields: []Field{
			{Name: "Status", Value: p.Status.Label(), Short: true},
			{Name: "Changed by", Value: author, Short: true},
		},
	}
}

// ScheduleVersionEvent describes a schedule bump and its change report.
func ScheduleVersionEvent(p *models.Project, sv *models.ScheduleVersion, report *models.VersionChangeReport, author string) Event {
	body := sv.Notes
	if report != nil && report.ChangeSummary != "" {
		body = report.ChangeSummary
	}
	return Event{
		Title: fmt.Sprintf("Schedule for %s %s is now version %s", p.ProjectID, p.Name, sv.Version),
		Body:  body,
		Color: ColorWarning,
		Fields: []Field{
			{Name: "Notes", Value: sv.Notes, Short: true},
			{Name: "Changed by", Value: author, Short: true},
		},
	}
}

// FormatDigest renders a digest as a single message.
func FormatDigest(d *Digest) Message {
	var events []Event
	if len(d.DueSoon) > 0 {
		events = append(events, Event{
			Title: fmt.Sprintf("%d task(s) due by %s", len(d.DueSoon), d.Until.Format(models.DateLayout)),
			Body:  taskLines(d.DueSoon),
			Color: ColorWarning,
		})
	}
	if len(d.Unread) > 0 {
		events = append(events, Event{
			Title: fmt.Sprintf("%d task(s) with unread comments", len(d.Unread)),
			Body:  taskLines(d.Unread),
			Color: ColorInfo,
		})
	}
	if len(d.Versions) > 0 {
		var lines []string
		for _, v := range d.Versions {
			lines = append(lines, fmt.Sprintf("• %s %s: %s %s", v.ProjectID, v.ProjectName, v.Kind, v.Version))
		}
		events = append(events, Event{
			Title: fmt.Sprintf("%d version(s) created in the last 24h", len(d.Versions)),
			Body:  strings.Join(lines, "\n"),
			Color: ColorSuccess,
		})
	}
	return Message{
		Text:   "Planyard daily digest for " + d.Generated.Format(models.DateLayout),
		Events: events,
	}
}

func taskLines(tasks []DigestTask) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("• %s: %s (%s, due %s)",
			t.ProjectID, t.Name, t.Status.Label(), models.FormatDate(t.EndDate)))
	}
	return strings.Join(lines, "\n")
}
