package models

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/planyard/internal/perrors"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestUser_Fields(t *testing.T) {
	typ := reflect.TypeOf(User{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Username", "uniqueIndex")
	assertGormTag(t, typ, "Email", "uniqueIndex")
	assertGormTag(t, typ, "Role", "default:team_member")
	assertFieldType(t, typ, "Role", "models.Role")

	f, _ := typ.FieldByName("PasswordHash")
	if f.Tag.Get("json") != "-" {
		t.Error("PasswordHash must not be serialized")
	}
}

func TestProject_Fields(t *testing.T) {
	typ := reflect.TypeOf(Project{})

	assertGormTag(t, typ, "ProjectID", "size:5")
	assertGormTag(t, typ, "ProjectID", "uniqueIndex")
	assertGormTag(t, typ, "StartDate", "type:date")
	assertGormTag(t, typ, "EndDate", "type:date")
	assertGormTag(t, typ, "Type", "column:project_type")
	assertGormTag(t, typ, "ManagerID", "column:project_manager_id")
	assertGormTag(t, typ, "Status", "default:entered")
	assertGormTag(t, typ, "TotalAmount", "decimal(10,2)")
	assertFieldType(t, typ, "TotalAmount", "decimal.NullDecimal")
	assertFieldType(t, typ, "MonthlyBilling", "decimal.NullDecimal")
}

func TestVersionRows_UniquePerProject(t *testing.T) {
	for _, typ := range []reflect.Type{reflect.TypeOf(ProjectVersion{}), reflect.TypeOf(ScheduleVersion{})} {
		assertGormTag(t, typ, "ProjectID", "uniqueIndex:idx_")
		assertGormTag(t, typ, "Version", "uniqueIndex:idx_")
		assertFieldType(t, typ, "Version", "version.Version")
	}
	pv := reflect.TypeOf(ProjectVersion{})
	if !strings.Contains(gormTag(t, pv, "Version"), "idx_project_version") {
		t.Error("ProjectVersion.Version must share idx_project_version")
	}
	sv := reflect.TypeOf(ScheduleVersion{})
	if !strings.Contains(gormTag(t, sv, "Version"), "idx_schedule_version") {
		t.Error("ScheduleVersion.Version must share idx_schedule_version")
	}
}

func TestTask_Fields(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "ProjectID", "index")
	assertGormTag(t, typ, "ParentID", "index")
	assertFieldType(t, typ, "ParentID", "*uint")
	assertGormTag(t, typ, "Status", "default:not_started")
	assertGormTag(t, typ, "Children", "foreignKey:ParentID")
	assertFieldType(t, typ, "Children", "[]models.Task")
}

func TestTaskResource_UniqueAssignment(t *testing.T) {
	typ := reflect.TypeOf(TaskResource{})
	assertGormTag(t, typ, "TaskID", "uniqueIndex:idx_task_user")
	assertGormTag(t, typ, "UserID", "uniqueIndex:idx_task_user")
}

func TestUser_FullName(t *testing.T) {
	tests := []struct {
		u    User
		want string
	}{
		{User{Username: "jdoe", FirstName: "Jane", LastName: "Doe"}, "Jane Doe"},
		{User{Username: "jdoe", FirstName: "Jane"}, "jdoe"},
		{User{Username: "jdoe", LastName: "Doe"}, "jdoe"},
		{User{Username: "jdoe"}, "jdoe"},
	}
	for _, tt := range tests {
		if got := tt.u.FullName(); got != tt.want {
			t.Errorf("FullName(%+v) = %q, want %q", tt.u, got, tt.want)
		}
	}
}

func TestPasswordResetToken_Valid(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := PasswordResetToken{ExpiresAt: now.Add(time.Hour)}
	if !tok.Valid(now) {
		t.Error("fresh token should be valid")
	}
	if tok.Valid(now.Add(2 * time.Hour)) {
		t.Error("expired token should be invalid")
	}
	tok.Used = true
	if tok.Valid(now) {
		t.Error("used token should be invalid")
	}
}

func TestEnumLabels(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ProjectFixedPrice.Label(), "Fixed Price"},
		{ProjectTimeAndMaterials.Label(), "T&M Price"},
		{ProjectEntered.Label(), "Entered"},
		{ProjectApprovedActive.Label(), "Approved & Active"},
		{ProjectCanceled.Label(), "Canceled"},
		{ProjectCompleted.Label(), "Completed"},
		{TaskNotStarted.Label(), "Not Started"},
		{TaskInProgress.Label(), "In Progress"},
		{TaskPending.Label(), "Pending"},
		{RoleProjectManager.Label(), "Project Manager"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("label = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEnumScan_RejectsUnknown(t *testing.T) {
	var s ProjectStatus
	if err := s.Scan("approved_active"); err != nil || s != ProjectApprovedActive {
		t.Fatalf("Scan(approved_active) = %q, %v", s, err)
	}
	if err := s.Scan([]byte("on_hold")); !errors.Is(err, perrors.ErrDataCorruption) {
		t.Errorf("Scan(on_hold) error = %v, want data corruption", err)
	}

	var ts TaskStatus
	if err := ts.Scan(nil); !errors.Is(err, perrors.ErrDataCorruption) {
		t.Errorf("Scan(nil) error = %v, want data corruption", err)
	}

	var r Role
	if err := r.Scan(42); !errors.Is(err, perrors.ErrDataCorruption) {
		t.Errorf("Scan(42) error = %v, want data corruption", err)
	}

	var pt ProjectType
	if err := pt.Scan("fixed_price"); err != nil || pt != ProjectFixedPrice {
		t.Errorf("Scan(fixed_price) = %q, %v", pt, err)
	}
}

func TestEnumValue_RejectsInvalid(t *testing.T) {
	if _, err := TaskStatus("done").Value(); !errors.Is(err, perrors.ErrValidation) {
		t.Errorf("Value(done) error = %v, want validation", err)
	}
	v, err := TaskCompleted.Value()
	if err != nil || v != "completed" {
		t.Errorf("Value(completed) = %v, %v", v, err)
	}
}

func TestDates(t *testing.T) {
	start := time.Date(2024, 1, 1, 15, 30, 0, 0, time.FixedZone("x", 3600))
	end := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	if got := DaysBetween(start, end); got != 5 {
		t.Errorf("DaysBetween = %d, want 5", got)
	}
	if got := FormatDate(DateOnly(start)); got != "2024-01-01" {
		t.Errorf("FormatDate = %q", got)
	}
	d, err := ParseDate("2024-02-29")
	if err != nil || d.Day() != 29 {
		t.Errorf("ParseDate = %v, %v", d, err)
	}
	if _, err := ParseDate("2024/02/29"); err == nil {
		t.Error("ParseDate should reject slashes")
	}
}
