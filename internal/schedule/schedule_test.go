package schedule

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/version"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Project{},
		&models.Task{},
		&models.ScheduleVersion{},
		&models.TaskVersionHistory{},
		&models.VersionChangeReport{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func insertVersion(t *testing.T, db *gorm.DB, projectID uint, v string) *models.ScheduleVersion {
	t.Helper()
	sv := models.ScheduleVersion{ProjectID: projectID, Version: version.MustParse(v), CreatedBy: 1}
	if err := db.Create(&sv).Error; err != nil {
		t.Fatalf("insert version %s: %v", v, err)
	}
	return &sv
}

func TestLatest_None(t *testing.T) {
	db := testDB(t)
	sv, err := Latest(db, 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if sv != nil {
		t.Errorf("Latest = %+v, want nil", sv)
	}
}

func TestLatest_NumericOrder(t *testing.T) {
	db := testDB(t)
	for _, v := range []string{"1.0", "1.9", "1.10", "1.2"} {
		insertVersion(t, db, 1, v)
	}
	insertVersion(t, db, 2, "1.50")

	sv, err := Latest(db, 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if sv.Version.String() != "1.10" {
		t.Errorf("Latest = %s, want 1.10", sv.Version)
	}
}

func TestLatest_CorruptVersion(t *testing.T) {
	db := testDB(t)
	if err := db.Exec("INSERT INTO schedule_versions (project_id, version, created_by, created_at) VALUES (1, 'one', 1, CURRENT_TIMESTAMP)").Error; err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	if _, err := Latest(db, 1); !errors.Is(err, perrors.ErrDataCorruption) {
		t.Errorf("Latest error = %v, want data corruption", err)
	}
}

func TestEnsure_CreatesInitialOnce(t *testing.T) {
	db := testDB(t)
	sv, created, err := Ensure(db, 5, 9)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !created || sv.Version != version.Initial || sv.Notes != InitialNotes || sv.CreatedBy != 9 {
		t.Errorf("Ensure = %+v created=%v", sv, created)
	}

	again, created, err := Ensure(db, 5, 9)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if created || again.ID != sv.ID {
		t.Errorf("second Ensure created a new row: %+v", again)
	}

	var n int64
	db.Model(&models.ScheduleVersion{}).Where("project_id = ?", 5).Count(&n)
	if n != 1 {
		t.Errorf("version rows = %d, want 1", n)
	}
}

func TestBump_FromExisting(t *testing.T) {
	db := testDB(t)
	insertVersion(t, db, 1, "1.0")
	insertVersion(t, db, 1, "1.9")

	prev, next, err := Bump(db, 1, 3, TaskUpdatedNotes("Design"))
	if err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if prev.Version.String() != "1.9" {
		t.Errorf("prev = %s, want 1.9", prev.Version)
	}
	if next.Version.String() != "1.10" {
		t.Errorf("next = %s, want 1.10", next.Version)
	}
	if next.Notes != "Task 'Design' updated" {
		t.Errorf("notes = %q", next.Notes)
	}
}

func TestBump_EnsuresInitialFirst(t *testing.T) {
	db := testDB(t)
	prev, next, err := Bump(db, 1, 3, "n")
	if err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if prev.Version.String() != "1.0" || next.Version.String() != "1.1" {
		t.Errorf("Bump = %s -> %s, want 1.0 -> 1.1", prev.Version, next.Version)
	}
}

func TestDuplicateVersion_UniquenessConflict(t *testing.T) {
	db := testDB(t)
	insertVersion(t, db, 1, "1.0")
	dup := models.ScheduleVersion{ProjectID: 1, Version: version.Initial, CreatedBy: 1}
	err := perrors.Persistence(db.Create(&dup).Error, "insert")
	if !errors.Is(err, perrors.ErrUniquenessConflict) {
		t.Errorf("duplicate version error = %v, want uniqueness conflict", err)
	}
}

func TestLockProject(t *testing.T) {
	db := testDB(t)
	// sqlite relies on its own writer lock.
	if err := LockProject(db, 123); err != nil {
		t.Errorf("LockProject on sqlite = %v, want nil", err)
	}
}

func TestSnapshotAndHistory(t *testing.T) {
	db := testDB(t)
	sv := insertVersion(t, db, 1, "1.0")
	task := &models.Task{
		ID:        42,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		Status:    models.TaskInProgress,
	}
	if _, err := RecordSnapshot(db, task, sv.ID); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	task.Status = models.TaskCompleted
	if _, err := RecordSnapshot(db, task, sv.ID); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	hist, err := History(db, 42)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(hist))
	}
	if hist[0].Status != models.TaskInProgress || hist[1].Status != models.TaskCompleted {
		t.Errorf("History statuses = %s, %s", hist[0].Status, hist[1].Status)
	}
	if models.FormatDate(hist[0].EndDate) != "2024-01-06" {
		t.Errorf("EndDate = %v", hist[0].EndDate)
	}
}

func TestChangeReports(t *testing.T) {
	db := testDB(t)
	a := insertVersion(t, db, 1, "1.0")
	b := insertVersion(t, db, 1, "1.1")
	if _, err := RecordChangeReport(db, b.ID, &a.ID, "Status changed from Not Started to In Progress", 2); err != nil {
		t.Fatalf("RecordChangeReport: %v", err)
	}
	reports, err := Reports(db, b.ID)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("len(Reports) = %d, want 1", len(reports))
	}
	if *reports[0].PreviousVersionID != a.ID {
		t.Errorf("PreviousVersionID = %d, want %d", *reports[0].PreviousVersionID, a.ID)
	}
}

func TestList_NewestFirst(t *testing.T) {
	db := testDB(t)
	for _, v := range []string{"1.0", "1.1", "1.10", "1.2"} {
		insertVersion(t, db, 1, v)
	}
	rows, err := List(db, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, r := range rows {
		got = append(got, r.Version.String())
	}
	want := []string{"1.10", "1.2", "1.1", "1.0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List order = %v, want %v", got, want)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := Get(db, 77); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("Get error = %v, want not found", err)
	}
}

func TestSince(t *testing.T) {
	db := testDB(t)
	insertVersion(t, db, 1, "1.0")
	rows, err := Since(db, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Since(-1h) = %d rows, want 1", len(rows))
	}
	rows, _ = Since(db, time.Now().UTC().Add(time.Hour))
	if len(rows) != 0 {
		t.Errorf("Since(+1h) = %d rows, want 0", len(rows))
	}
}

func TestDeleteForProject(t *testing.T) {
	db := testDB(t)
	a := insertVersion(t, db, 1, "1.0")
	b := insertVersion(t, db, 1, "1.1")
	other := insertVersion(t, db, 2, "1.0")
	RecordChangeReport(db, b.ID, &a.ID, "x", 1)
	RecordSnapshot(db, &models.Task{ID: 1, Status: models.TaskPending}, a.ID)
	RecordSnapshot(db, &models.Task{ID: 2, Status: models.TaskPending}, other.ID)

	if err := DeleteForProject(db, 1); err != nil {
		t.Fatalf("DeleteForProject: %v", err)
	}
	var n int64
	db.Model(&models.ScheduleVersion{}).Count(&n)
	if n != 1 {
		t.Errorf("versions left = %d, want 1", n)
	}
	db.Model(&models.VersionChangeReport{}).Count(&n)
	if n != 0 {
		t.Errorf("reports left = %d, want 0", n)
	}
	db.Model(&models.TaskVersionHistory{}).Count(&n)
	if n != 1 {
		t.Errorf("snapshots left = %d, want 1", n)
	}
}
