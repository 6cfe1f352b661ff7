// Package domain defines the persistence models for reference documents and
// student questions. These types are mapped with GORM and also travel over
// the HTTP API, so JSON names follow the client contract.
package domain

import "time"

// Question status filters used by the teacher dashboard.
const (
	StatusAll      = "all"
	StatusAnswered = "answered"
	StatusPending  = "pending"
)

// Document is the registry record of an uploaded reference file. A record
// only exists once both the raw object and its extracted-text sidecar have
// been written.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Name / OriginalName: client-supplied file name; Name starts equal to it.
//   - Size: raw byte length of the upload.
//   - Type: the declared MIME type (pdf, doc or docx).
//   - UploadDate: UTC creation instant, immutable.
//   - FilePath: storage key of the raw bytes.
//   - TextPreview: first 1000 characters of the extracted text.
type Document struct {
	ID           string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"         gorm:"type:varchar(255);not null"`
	OriginalName string    `json:"originalName" gorm:"type:varchar(255);not null"`
	Size         int64     `json:"size"         gorm:"not null;check:size > 0"`
	Type         string    `json:"type"         gorm:"type:varchar(128);not null"`
	UploadDate   time.Time `json:"uploadDate"   gorm:"not null;index"`
	FilePath     string    `json:"filePath"     gorm:"type:varchar(512);not null"`
	TextPreview  string    `json:"textPreview"  gorm:"type:text"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// Question is a student question escalated to a teacher.
// Answer is set if and only if Answered is true.
type Question struct {
	ID          string     `json:"id"                   gorm:"type:char(36);primaryKey"`
	Question    string     `json:"question"             gorm:"type:text;not null"`
	StudentName string     `json:"studentName"          gorm:"type:varchar(255);not null"`
	StudentID   string     `json:"studentId"            gorm:"type:varchar(64);not null;index"`
	Timestamp   time.Time  `json:"timestamp"            gorm:"not null;index"`
	Answered    bool       `json:"answered"             gorm:"not null;default:false;index"`
	Answer      *string    `json:"answer,omitempty"     gorm:"type:text"`
	AnsweredAt  *time.Time `json:"answeredAt,omitempty"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// Pending reports whether the question still awaits a teacher.
func (q Question) Pending() bool { return !q.Answered }

// QuestionStats are the dashboard counters.
type QuestionStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Answered int64 `json:"answered"`
}
