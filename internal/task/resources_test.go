package task

import (
	"errors"
	"testing"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/schedule"
)

func TestAssign_DuplicateRejected(t *testing.T) {
	db := testDB(t)
	pm := seedUser(t, db, "pm", models.RoleProjectManager)
	dev := seedUser(t, db, "dev", models.RoleTeamMember)
	p := seedProject(t, db, "10001", pm.ID)
	task := mustCreate(t, db, opts(p.ID, "Build", "2024-01-01", "2024-01-05"))

	if _, err := Assign(db, AssignOpts{TaskID: task.ID, UserID: dev.ID, Designation: "Engineer", Grade: "L2"}); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	_, err := Assign(db, AssignOpts{TaskID: task.ID, UserID: dev.ID})
	if !errors.Is(err, perrors.ErrDuplicateAssignment) {
		t.Fatalf("second Assign error = %v, want duplicate assignment", err)
	}

	if n := count(t, db, &models.ScheduleVersion{}); n != 1 {
		t.Errorf("schedule versions after assign = %d, want 1", n)
	}

	res, err := Resources(db, task.ID)
	if err != nil {
		t.Fatalf("Resources: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("got %d resources, want 1", len(res))
	}
	if res[0].Name != "Dev Test" || res[0].Designation != "Engineer" || res[0].Grade != "L2" {
		t.Errorf("resource = %+v", res[0])
	}
}

func TestAssign_Errors(t *testing.T) {
	db := testDB(t)
	admin := seedUser(t, db, "admin", models.RoleAdmin)
	pm := seedUser(t, db, "pm", models.RoleProjectManager)
	p := seedProject(t, db, "10001", pm.ID)
	task := mustCreate(t, db, opts(p.ID, "Build", "2024-01-01", "2024-01-05"))

	tests := []struct {
		name string
		in   AssignOpts
		want *perrors.Kind
	}{
		{"admin", AssignOpts{TaskID: task.ID, UserID: admin.ID}, perrors.ErrValidation},
		{"missing user", AssignOpts{TaskID: task.ID, UserID: 999}, perrors.ErrNotFound},
		{"missing task", AssignOpts{TaskID: 999, UserID: pm.ID}, perrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Assign(db, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Assign error = %v, want %s", err, tt.want.Code)
			}
		})
	}
}

func TestUnassign(t *testing.T) {
	db := testDB(t)
	pm := seedUser(t, db, "pm", models.RoleProjectManager)
	p := seedProject(t, db, "10001", pm.ID)
	task := mustCreate(t, db, opts(p.ID, "Build", "2024-01-01", "2024-01-05"))
	r, err := Assign(db, AssignOpts{TaskID: task.ID, UserID: pm.ID})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := Unassign(db, r.ID); err != nil {
		t.Fatalf("Unassign: %v", err)
	}
	if n := count(t, db, &models.ScheduleVersion{}); n != 1 {
		t.Errorf("schedule versions after assign/unassign = %d, want 1", n)
	}
	if err := Unassign(db, r.ID); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("second Unassign error = %v", err)
	}
	// Reassigning after removal is allowed.
	if _, err := Assign(db, AssignOpts{TaskID: task.ID, UserID: pm.ID}); err != nil {
		t.Errorf("reassign: %v", err)
	}
}

func TestComments_UnreadFlag(t *testing.T) {
	db := testDB(t)
	pm := seedUser(t, db, "pm", models.RoleProjectManager)
	dev := seedUser(t, db, "dev", models.RoleTeamMember)
	p := seedProject(t, db, "10001", pm.ID)
	task := mustCreate(t, db, opts(p.ID, "Build", "2024-01-01", "2024-01-05"))

	if _, err := AddComment(db, task.ID, dev.ID, "  "); !errors.Is(err, perrors.ErrValidation) {
		t.Errorf("empty comment error = %v", err)
	}
	if _, err := AddComment(db, 999, dev.ID, "hi"); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("missing task error = %v", err)
	}
	if _, err := AddComment(db, task.ID, dev.ID, "first"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := AddComment(db, task.ID, pm.ID, "second"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	got, _ := Get(db, task.ID)
	if !got.HasUnreadComments {
		t.Error("HasUnreadComments = false after comment")
	}
	cs, err := Comments(db, task.ID)
	if err != nil {
		t.Fatalf("Comments: %v", err)
	}
	if len(cs) != 2 || cs[0].Content != "first" || cs[0].Author != "Dev Test" || cs[1].Author != "Pm Test" {
		t.Errorf("comments = %+v", cs)
	}

	if err := MarkRead(db, task.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	got, _ = Get(db, task.ID)
	if got.HasUnreadComments {
		t.Error("HasUnreadComments = true after MarkRead")
	}
	if n := count(t, db, &models.ScheduleVersion{}); n != 1 {
		t.Errorf("schedule versions after comments = %d, want 1", n)
	}
	latest, err := schedule.Latest(db, p.ID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Version.String() != "1.0" {
		t.Errorf("latest schedule = %s, want 1.0", latest.Version)
	}
}

func TestGantt(t *testing.T) {
	db := testDB(t)
	pm := seedUser(t, db, "pm", models.RoleProjectManager)
	dev := seedUser(t, db, "dev", models.RoleTeamMember)
	p := seedProject(t, db, "10001", pm.ID)
	root := mustCreate(t, db, opts(p.ID, "Phase 1", "2024-01-01", "2024-01-31"))
	c := opts(p.ID, "Build", "2024-01-05", "2024-01-10")
	c.ParentID = &root.ID
	c.Status = models.TaskInProgress
	child := mustCreate(t, db, c)
	m := opts(p.ID, "Launch", "2024-02-01", "2024-02-01")
	m.IsMilestone = true
	m.Status = models.TaskCompleted
	mustCreate(t, db, m)

	for _, u := range []uint{dev.ID, pm.ID} {
		if _, err := Assign(db, AssignOpts{TaskID: child.ID, UserID: u}); err != nil {
			t.Fatalf("Assign: %v", err)
		}
	}

	rows, err := Gantt(db, p.ID)
	if err != nil {
		t.Fatalf("Gantt: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	build := rows[1]
	if build.Name != "Build" || build.Dependencies != "Phase 1" || build.Progress != 50 {
		t.Errorf("build row = %+v", build)
	}
	if build.Resources != "Dev Test, Pm Test" || build.Status != "In Progress" {
		t.Errorf("build row = %+v", build)
	}
	if build.Start != "2024-01-05" || build.End != "2024-01-10" {
		t.Errorf("build dates = %s..%s", build.Start, build.End)
	}
	launch := rows[2]
	if launch.Progress != 100 || !launch.IsMilestone || launch.Dependencies != "" {
		t.Errorf("launch row = %+v", launch)
	}
	if rows[0].Progress != 0 {
		t.Errorf("root progress = %d", rows[0].Progress)
	}
}
