package models

import "time"

// IAModel 数据库助手模型
// 子表外键均为 ON DELETE CASCADE
type IAModel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:255;not null"`
	PhoneNumber string `gorm:"column:phone_number;size:64;not null"`
	Status      bool   `gorm:"not null"`
	Version     int    `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Prompts []PromptModel  `gorm:"foreignKey:IAID;constraint:OnDelete:CASCADE"`
	Config  *IAConfigModel `gorm:"foreignKey:IAID;constraint:OnDelete:CASCADE"`
	Leads   []LeadModel    `gorm:"foreignKey:IAID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (IAModel) TableName() string {
	return "ias"
}
