package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Resume struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Filename         string    `gorm:"type:varchar(255);not null" json:"filename"`
	OriginalFilename string    `gorm:"type:varchar(255);not null" json:"original_filename"`
	UploadedAt       time.Time `gorm:"not null" json:"uploaded_at"`
	RawText          string    `gorm:"type:text" json:"raw_text"`
	Skills           string    `gorm:"type:text" json:"skills"`
	Education        string    `gorm:"type:text" json:"education"`
	Experience       string    `gorm:"type:text" json:"experience"`
	JobTitle         string    `gorm:"type:varchar(255)" json:"job_title"`
	Location         string    `gorm:"type:varchar(255)" json:"location"`

	Matches []JobMatch `gorm:"foreignKey:ResumeID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Resume) TableName() string {
	return "resumes"
}

// SkillsList splits the comma-joined Skills column.
func (r *Resume) SkillsList() []string {
	if r.Skills == "" {
		return nil
	}
	parts := strings.Split(r.Skills, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type JobMatch struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ResumeID    uuid.UUID `gorm:"type:uuid;not null;index" json:"resume_id"`
	JobID       string    `gorm:"type:varchar(255);not null" json:"job_id"`
	JobTitle    string    `gorm:"type:varchar(255);not null" json:"job_title"`
	Company     string    `gorm:"type:varchar(255)" json:"company"`
	Location    string    `gorm:"type:varchar(255)" json:"location"`
	Description string    `gorm:"type:text" json:"description"`
	URL         string    `gorm:"type:varchar(1024)" json:"url"`
	Score       float64   `gorm:"not null" json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}

func (JobMatch) TableName() string {
	return "job_matches"
}
