package models

import "time"

// PromptModel 数据库提示词模型
type PromptModel struct {
	ID         uint   `gorm:"primaryKey"`
	IAID       uint   `gorm:"column:ia_id;not null;index"`
	PromptText string `gorm:"column:prompt_text;type:text;not null"`
	IsActive   bool   `gorm:"column:is_active;not null"`
	Version    int    `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 指定表名
func (PromptModel) TableName() string {
	return "prompts"
}
