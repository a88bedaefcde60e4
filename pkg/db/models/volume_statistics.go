package models

import (
	"fmt"
	"time"
)

// VolumeStatistics is one append-only snapshot row. Rows sharing a
// StatisticsTimestamp form a generation.
type VolumeStatistics struct {
	StudyID             string    `gorm:"column:study_id;primaryKey;type:text"`
	SubjectID           string    `gorm:"column:subject_id;primaryKey;type:text"`
	IsRaw               bool      `gorm:"column:is_raw;primaryKey;autoIncrement:false"`
	IsProtected         bool      `gorm:"column:is_protected;primaryKey;autoIncrement:false"`
	Modality            string    `gorm:"column:modality;primaryKey;type:text"`
	StatisticsTimestamp time.Time `gorm:"column:statistics_timestamp;primaryKey;index"`
	FilesCount          int64     `gorm:"column:files_count;not null"`
	FilesSizeMB         float64   `gorm:"column:files_size_mb;not null"`
}

func (VolumeStatistics) TableName() string {
	return "volume_statistics"
}

func (v VolumeStatistics) String() string {
	return fmt.Sprintf("VolumeStatistics(%s %s %s %s Count: %d Size: %.2fMB)",
		v.SubjectID, ProtectionName(v.IsProtected), StageName(v.IsRaw), v.Modality, v.FilesCount, v.FilesSizeMB)
}

// Totals is a summed view over one generation.
type Totals struct {
	FilesCount  int64   `gorm:"column:files_count"   json:"files_count"`
	FilesSizeMB float64 `gorm:"column:files_size_mb" json:"files_size_mb"`
}
