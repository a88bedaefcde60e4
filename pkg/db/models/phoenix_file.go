package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// PhoenixFile classifies a file by its placement in the PHOENIX structure.
// The path determines exactly one classification; a re-crawl replaces it.
type PhoenixFile struct {
	FilePath           string            `gorm:"column:file_path;primaryKey;type:text"`
	StudyID            string            `gorm:"column:study_id;type:text;not null;index:idx_phoenix_subject_modality,priority:1"`
	SubjectID          string            `gorm:"column:subject_id;type:text;not null;index:idx_phoenix_subject_modality,priority:2"`
	Modality           string            `gorm:"column:modality;type:text;not null;index:idx_phoenix_subject_modality,priority:3"`
	IsRaw              bool              `gorm:"column:is_raw;not null"`
	IsProtected        bool              `gorm:"column:is_protected;not null"`
	ExtractedTimestamp time.Time         `gorm:"column:extracted_timestamp"`
	Metadata           datatypes.JSONMap `gorm:"column:metadata"`
}

func (PhoenixFile) TableName() string {
	return "phoenix_file"
}

func (p PhoenixFile) String() string {
	return fmt.Sprintf("PhoenixFile(%s %s %s %s %s)",
		ProtectionName(p.IsProtected), p.StudyID, StageName(p.IsRaw), p.SubjectID, p.FilePath)
}

// ClassifiedFile pairs a file with its classification; the reconciler writes
// both in one step.
type ClassifiedFile struct {
	File    File
	Phoenix PhoenixFile
}

// FileRecord is the joined view read back by the statistics stage.
type FileRecord struct {
	FilePath      string
	Modality      string
	IsRaw         bool
	IsProtected   bool
	FileSizeBytes int64
	Metadata      datatypes.JSONMap
}

func ProtectionName(protected bool) string {
	if protected {
		return "protected"
	}
	return "general"
}

func StageName(raw bool) string {
	if raw {
		return "raw"
	}
	return "processed"
}
