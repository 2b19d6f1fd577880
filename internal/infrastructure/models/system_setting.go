package models

import "time"

type SystemSetting struct {
	Key         string `gorm:"type:varchar(100);primaryKey"`
	Value       string `gorm:"type:text;not null"`
	Description string `gorm:"type:text"`
	UpdatedAt   time.Time
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
