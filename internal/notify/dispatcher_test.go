package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/version"
)

func TestDispatcher_FanOutAndFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ok := NewMockAdapter()
	bad := NewMockAdapter()
	bad.Err = errors.New("channel_not_found")

	d := NewDispatcher(zap.New(core),
		Target{Platform: "slack", Adapter: bad},
		Target{Platform: "discord", Adapter: ok},
	)
	if got := d.Send(context.Background(), Message{Text: "hello"}); got != 1 {
		t.Errorf("Send delivered %d, want 1", got)
	}
	if ok.SentCount() != 1 {
		t.Errorf("healthy adapter got %d messages", ok.SentCount())
	}
	entries := logs.FilterMessage("notification failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d failure logs, want 1", len(entries))
	}
	if entries[0].ContextMap()["platform"] != "slack" {
		t.Errorf("log fields = %v", entries[0].ContextMap())
	}
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	if d.Len() != 0 {
		t.Error("nil dispatcher should have no targets")
	}
	if got := d.Send(context.Background(), Message{Text: "x"}); got != 0 {
		t.Errorf("Send = %d", got)
	}
	d.ProjectVersionCreated(context.Background(), &models.Project{}, &models.ProjectVersion{}, "x")
}

func TestDispatcher_VersionEvents(t *testing.T) {
	m := NewMockAdapter()
	d := NewDispatcher(nil, Target{Platform: "mock", Adapter: m})
	p := &models.Project{ID: 1, ProjectID: "12345", Name: "Apollo", Status: models.ProjectApprovedActive}

	d.ProjectVersionCreated(context.Background(), p, &models.ProjectVersion{
		Version: version.MustParse("1.1"),
		Changes: "Name changed from 'A' to 'Apollo'",
	}, "Pat Manager")
	msg, sent := m.LastSent()
	if !sent {
		t.Fatal("no message sent")
	}
	ev := msg.Events[0]
	if ev.Title != "Project 12345 Apollo is now version 1.1" || ev.Body != "Name changed from 'A' to 'Apollo'" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Fields[0].Value != "Approved & Active" || ev.Fields[1].Value != "Pat Manager" {
		t.Errorf("fields = %+v", ev.Fields)
	}

	d.ScheduleVersionCreated(context.Background(), p,
		&models.ScheduleVersion{Version: version.MustParse("1.3"), Notes: "Task 'Build' updated"},
		&models.VersionChangeReport{ChangeSummary: "Status changed from Not Started to Completed"}, "Pat Manager")
	msg, _ = m.LastSent()
	if !strings.Contains(msg.Text, "version 1.3") || msg.Events[0].Body != "Status changed from Not Started to Completed" {
		t.Errorf("schedule message = %+v", msg)
	}

	d.ScheduleVersionCreated(context.Background(), p, nil, nil, "x")
	if m.SentCount() != 2 {
		t.Errorf("nil version should not send; count = %d", m.SentCount())
	}
}
