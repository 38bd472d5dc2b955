package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/planyard/internal/perrors"
)

// testConfig writes a planyard.yaml backed by a sqlite file in a temp dir
// and initializes the database with an admin account.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "planyard.yaml")
	body := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "planyard.db") + "\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRun(t, cfgPath, "db", "init", "--admin-password", "s3cret-pass")
	return cfgPath
}

// run executes the root command with args plus --config and returns its
// output.
func run(cfgPath string, stdin string, args ...string) (string, error) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--config", cfgPath))
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := run(cfgPath, "", args...)
	if err != nil {
		t.Fatalf("pl %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func expectContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

// seedTeam creates a project manager "pat", a second manager "quinn" and
// a team member "dev", then a project managed by pat.
func seedTeam(t *testing.T, cfgPath string) {
	t.Helper()
	mustRun(t, cfgPath, "user", "create", "--as", "admin", "--username", "pat", "--email", "pat@example.com",
		"--password", "s3cret-pass", "--role", "project_manager", "--first-name", "Pat", "--last-name", "Test")
	mustRun(t, cfgPath, "user", "create", "--as", "admin", "--username", "quinn", "--email", "quinn@example.com",
		"--password", "s3cret-pass", "--role", "project_manager", "--first-name", "Quinn", "--last-name", "Test")
	mustRun(t, cfgPath, "user", "create", "--as", "admin", "--username", "dev", "--email", "dev@example.com",
		"--password", "s3cret-pass", "--first-name", "Dev", "--last-name", "Test")
	mustRun(t, cfgPath, "project", "create", "--as", "pat", "--name", "Apollo",
		"--start", "2024-01-01", "--end", "2024-03-31", "--total-amount", "12000")
}

func TestDBInit_Idempotent(t *testing.T) {
	cfgPath := testConfig(t)

	out := mustRun(t, cfgPath, "db", "init", "--admin-password", "s3cret-pass")
	expectContains(t, out, `Administrator "admin" already exists`, "initialized successfully")

	out = mustRun(t, cfgPath, "db", "migrate")
	expectContains(t, out, "Migrated")
}

func TestUserCreate_RequiresAdmin(t *testing.T) {
	cfgPath := testConfig(t)
	seedTeam(t, cfgPath)

	_, err := run(cfgPath, "", "user", "create", "--as", "pat", "--username", "eve", "--email", "eve@example.com", "--password", "s3cret-pass")
	if !errors.Is(err, perrors.ErrPermissionDenied) {
		t.Fatalf("create by project manager: err = %v, want permission denied", err)
	}
}

func TestUserCreate_PromptsForPassword(t *testing.T) {
	cfgPath := testConfig(t)

	out, err := run(cfgPath, "prompted-pass\n", "user", "create", "--as", "admin", "--username", "sam", "--email", "sam@example.com")
	if err != nil {
		t.Fatalf("user create: %v\n%s", err, out)
	}
	expectContains(t, out, "Password for sam:", "Created user sam")

	out = mustRun(t, cfgPath, "user", "list", "--resources")
	expectContains(t, out, "sam")
	if strings.Contains(out, "admin@localhost") {
		t.Errorf("--resources listed the administrator:\n%s", out)
	}
}

func TestProjectLifecycle(t *testing.T) {
	cfgPath := testConfig(t)
	seedTeam(t, cfgPath)

	out := mustRun(t, cfgPath, "project", "show", "1", "--as", "pat")
	expectContains(t, out, "Apollo", "Pat Test", "12000.00", "Initial project creation")

	out = mustRun(t, cfgPath, "project", "update", "1", "--as", "pat", "--status", "approved_active")
	expectContains(t, out, "New version 1.1", "Status changed from Entered to Approved & Active")

	if _, err := run(cfgPath, "", "project", "update", "1", "--as", "pat", "--manager", "quinn"); !errors.Is(err, perrors.ErrPermissionDenied) {
		t.Errorf("manager change by project manager: err = %v, want permission denied", err)
	}
	if _, err := run(cfgPath, "", "project", "show", "1", "--as", "quinn"); !errors.Is(err, perrors.ErrPermissionDenied) {
		t.Errorf("show by other manager: err = %v, want permission denied", err)
	}

	out = mustRun(t, cfgPath, "project", "version", "1", "--as", "pat", "--changes", "Customer signed SOW")
	expectContains(t, out, "now version 1.2")

	out = mustRun(t, cfgPath, "project", "versions", "1")
	expectContains(t, out, "1.0", "1.1", "1.2", "Customer signed SOW", "Pat Test")

	out = mustRun(t, cfgPath, "project", "list", "--as", "quinn")
	expectContains(t, out, "No projects found.")
	out = mustRun(t, cfgPath, "project", "list", "--as", "pat")
	expectContains(t, out, "Apollo", "Page 1 of 1 (1 projects)")

	if _, err := run(cfgPath, "", "project", "delete", "1", "--as", "pat"); !errors.Is(err, perrors.ErrPermissionDenied) {
		t.Errorf("delete by project manager: err = %v, want permission denied", err)
	}
	mustRun(t, cfgPath, "project", "delete", "1", "--as", "admin")
	if _, err := run(cfgPath, "", "project", "show", "1"); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("show after delete: err = %v, want not found", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	cfgPath := testConfig(t)
	seedTeam(t, cfgPath)

	out := mustRun(t, cfgPath, "task", "create", "--as", "pat", "--project", "1", "--name", "Design",
		"--start", "2024-01-01", "--end", "2024-01-05")
	expectContains(t, out, `Created task 1 "Design" (40 hours)`)
	mustRun(t, cfgPath, "task", "create", "--as", "pat", "--project", "1", "--name", "Wireframes",
		"--start", "2024-01-02", "--end", "2024-01-03", "--parent", "1")

	out = mustRun(t, cfgPath, "schedule", "list", "1")
	expectContains(t, out, "1.0")

	out = mustRun(t, cfgPath, "task", "update", "1", "--as", "pat", "--end", "2024-01-10", "--status", "in_progress")
	expectContains(t, out, "Schedule 1.0 -> 1.1",
		"End date changed from 2024-01-05 to 2024-01-10",
		"Status changed from Not Started to In Progress")

	out = mustRun(t, cfgPath, "task", "update", "1", "--as", "pat", "--end", "2024-01-10")
	expectContains(t, out, "No changes")

	out = mustRun(t, cfgPath, "schedule", "reports", "1")
	expectContains(t, out, "Schedule 1.1 of project", "End date changed from 2024-01-05 to 2024-01-10")
	out = mustRun(t, cfgPath, "schedule", "reports", "1", "1.0")
	expectContains(t, out, "No change reports.")
	if _, err := run(cfgPath, "", "schedule", "reports", "1", "9.9"); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("reports for unknown version: err = %v, want not found", err)
	}

	if _, err := run(cfgPath, "", "task", "update", "1", "--as", "dev", "--name", "Hijack"); !errors.Is(err, perrors.ErrPermissionDenied) {
		t.Errorf("update by team member: err = %v, want permission denied", err)
	}
	if _, err := run(cfgPath, "", "task", "update", "1", "--as", "pat", "--parent", "2"); !errors.Is(err, perrors.ErrValidation) {
		t.Errorf("cycle via parent: err = %v, want validation", err)
	}

	out = mustRun(t, cfgPath, "task", "assign", "1", "--as", "pat", "--user", "dev", "--designation", "Engineer")
	expectContains(t, out, "Assigned dev to task 1")
	if _, err := run(cfgPath, "", "task", "assign", "1", "--as", "pat", "--user", "dev"); !errors.Is(err, perrors.ErrDuplicateAssignment) {
		t.Errorf("second assignment: err = %v, want duplicate assignment", err)
	}

	mustRun(t, cfgPath, "task", "comment", "1", "Looks good", "--as", "dev")

	out = mustRun(t, cfgPath, "task", "list", "--project", "1", "--resource", "dev")
	expectContains(t, out, "Design")

	out = mustRun(t, cfgPath, "task", "show", "1", "--as", "pat")
	expectContains(t, out, "Wireframes", "Dev Test", "Looks good", "Schedule history:", "1.1")

	out = mustRun(t, cfgPath, "task", "tree", "1")
	expectContains(t, out, "1 Design", "\n  2 Wireframes")

	out = mustRun(t, cfgPath, "task", "gantt", "1")
	expectContains(t, out, "Design", "50%", "Dev Test")

	out = mustRun(t, cfgPath, "task", "unassign", "1", "--as", "pat")
	expectContains(t, out, "Removed resource 1")

	out = mustRun(t, cfgPath, "task", "delete", "1", "--as", "pat")
	expectContains(t, out, "Deleted task 1 and 1 subtask(s)")
	out = mustRun(t, cfgPath, "task", "list", "--project", "1")
	expectContains(t, out, "No tasks found.")
}

func TestDigest_DryRun(t *testing.T) {
	cfgPath := testConfig(t)

	out := mustRun(t, cfgPath, "digest", "--dry-run")
	expectContains(t, out, "Nothing to report.")

	if _, err := run(cfgPath, "", "digest"); err == nil || !strings.Contains(err.Error(), "no notification platform") {
		t.Errorf("digest without platforms: err = %v", err)
	}
}
