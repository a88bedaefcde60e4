package models

// Network is a research consortium grouping studies.
type Network struct {
	NetworkID string `gorm:"column:network_id;primaryKey;type:text"`

	// Relationships
	Studies []Study `gorm:"foreignKey:NetworkID;references:NetworkID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Network) TableName() string {
	return "networks"
}

// Study is one site of a network. It is read-only to the crawl and statistics
// stages.
type Study struct {
	StudyID          string `gorm:"column:study_id;primaryKey;type:text"`
	StudyName        string `gorm:"column:study_name;type:text;not null"`
	StudyCountry     string `gorm:"column:study_country;type:text"`
	StudyCountryCode string `gorm:"column:study_country_code;type:text"`
	NetworkID        string `gorm:"column:network_id;type:text;not null;index"`

	// Relationships
	Subjects []Subject `gorm:"foreignKey:StudyID;references:StudyID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Study) TableName() string {
	return "study"
}
