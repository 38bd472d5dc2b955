package project

import (
	"fmt"
	"path"
	"strings"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
)

// AttachmentOpts describes an uploaded document. File bytes are stored
// elsewhere; only metadata is recorded.
type AttachmentOpts struct {
	ProjectID  uint
	Kind       models.AttachmentKind
	Filename   string
	FilePath   string // defaults to uploads/<kind>/<project id>_<filename>
	UploadedBy uint
}

// AddAttachment records attachment metadata for a project. Attachments do
// not create project versions.
func AddAttachment(db *gorm.DB, opts AttachmentOpts) (*models.Attachment, error) {
	if !opts.Kind.Valid() {
		return nil, perrors.Validation("project: unknown attachment kind %q", opts.Kind)
	}
	filename := path.Base(strings.TrimSpace(opts.Filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, perrors.Validation("project: attachment filename is required")
	}
	p, err := Get(db, opts.ProjectID)
	if err != nil {
		return nil, err
	}
	filePath := opts.FilePath
	if filePath == "" {
		filePath = fmt.Sprintf("uploads/%s/%s_%s", opts.Kind, p.ProjectID, filename)
	}
	a := models.Attachment{
		ProjectID:  p.ID,
		Kind:       opts.Kind,
		Filename:   filename,
		FilePath:   filePath,
		UploadedBy: opts.UploadedBy,
	}
	if err := db.Create(&a).Error; err != nil {
		return nil, perrors.Persistence(err, "project: add attachment to %s", p.ProjectID)
	}
	return &a, nil
}

// Attachments lists a project's attachments in upload order.
func Attachments(db *gorm.DB, projectID uint) ([]models.Attachment, error) {
	var rows []models.Attachment
	if err := db.Where("project_id = ?", projectID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, perrors.Persistence(err, "project: attachments of %d", projectID)
	}
	return rows, nil
}
