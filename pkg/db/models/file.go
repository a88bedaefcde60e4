package models

import (
	"time"
)

// File represents the on-disk identity of a crawled file.
type File struct {
	FilePath      string    `gorm:"column:file_path;primaryKey;type:text"`
	FileName      string    `gorm:"column:file_name;type:text;not null"`
	FileType      string    `gorm:"column:file_type;type:text"`
	FileSizeBytes int64     `gorm:"column:file_size_bytes;not null"`
	FileSizeMB    float64   `gorm:"column:file_size_mb;not null"`
	ModifiedAt    time.Time `gorm:"column:m_time"`

	// Empty unless hashing is enabled for the crawl.
	MD5Hash string `gorm:"column:md5;type:text"`

	// Relationships
	Phoenix *PhoenixFile `gorm:"foreignKey:FilePath;references:FilePath;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (File) TableName() string {
	return "files"
}

const bytesPerMB = 1024 * 1024

// SizeMB converts a byte count the way every stored size is expressed.
func SizeMB(bytes int64) float64 {
	return float64(bytes) / bytesPerMB
}
