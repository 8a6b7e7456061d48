package models

import "time"

// IAConfigModel 数据库配置模型，每个 IA 至多一条
type IAConfigModel struct {
	ID                   uint   `gorm:"primaryKey"`
	IAID                 uint   `gorm:"column:ia_id;not null;uniqueIndex"`
	Channel              string `gorm:"size:64;not null"`
	AIAPI                string `gorm:"column:ai_api;size:64;not null"`
	EncryptedCredentials string `gorm:"column:encrypted_credentials;type:text;not null"` // vault token
	Version              int    `gorm:"not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TableName 指定表名
func (IAConfigModel) TableName() string {
	return "ia_config"
}
