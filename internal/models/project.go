package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zulandar/planyard/internal/version"
)

// Project is a unit of client work identified externally by a five digit
// ProjectID.
type Project struct {
	ID               uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID        string              `gorm:"column:project_id;size:5;uniqueIndex;not null" json:"project_id"`
	Name             string              `gorm:"size:100;not null" json:"name"`
	Description      string              `gorm:"type:text" json:"description"`
	StartDate        time.Time           `gorm:"type:date;not null;index" json:"start_date"`
	EndDate          time.Time           `gorm:"type:date;not null" json:"end_date"`
	Type             ProjectType         `gorm:"column:project_type;size:32;not null" json:"project_type"`
	TotalAmount      decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	MonthlyBilling   decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"monthly_billing"`
	ManagerID        uint                `gorm:"column:project_manager_id;not null;index" json:"project_manager_id"`
	CustomerPONumber string              `gorm:"column:customer_po_number;size:50" json:"customer_po_number"`
	Status           ProjectStatus       `gorm:"size:32;not null;default:entered;index" json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ProjectVersion records one meaningful edit of a project.
type ProjectVersion struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint            `gorm:"column:project_id;not null;uniqueIndex:idx_project_version" json:"project_id"`
	Version   version.Version `gorm:"size:10;not null;uniqueIndex:idx_project_version" json:"version"`
	Changes   string          `gorm:"type:text" json:"changes"`
	CreatedBy uint            `gorm:"not null" json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// Attachment is metadata for an uploaded PO or SOW document.
type Attachment struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID  uint           `gorm:"column:project_id;not null;index" json:"project_id"`
	Kind       AttachmentKind `gorm:"size:8;not null" json:"kind"`
	Filename   string         `gorm:"size:255;not null" json:"filename"`
	FilePath   string         `gorm:"size:255;not null" json:"file_path"`
	UploadedBy uint           `gorm:"not null" json:"uploaded_by"`
	UploadedAt time.Time      `gorm:"autoCreateTime" json:"uploaded_at"`
}
