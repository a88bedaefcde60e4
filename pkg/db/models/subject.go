package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subject is a participant of a study.
type Subject struct {
	StudyID     string    `gorm:"column:study_id;primaryKey;type:text"`
	SubjectID   string    `gorm:"column:subject_id;primaryKey;type:text"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	ConsentDate time.Time `gorm:"column:consent_date"`

	// Registry columns that have no dedicated field. Values are strings,
	// numbers or booleans.
	OptionalNotes datatypes.JSONMap `gorm:"column:optional_notes"`

	// Relationships
	Files      []PhoenixFile      `gorm:"foreignKey:StudyID,SubjectID;references:StudyID,SubjectID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Statistics []VolumeStatistics `gorm:"foreignKey:StudyID,SubjectID;references:StudyID,SubjectID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Subject) TableName() string {
	return "subjects"
}

// SubjectKey identifies a subject across studies.
type SubjectKey struct {
	StudyID   string
	SubjectID string
}

func (s Subject) Key() SubjectKey {
	return SubjectKey{StudyID: s.StudyID, SubjectID: s.SubjectID}
}

func (k SubjectKey) String() string {
	return k.StudyID + "/" + k.SubjectID
}
