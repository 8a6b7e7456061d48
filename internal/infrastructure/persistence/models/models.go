// Package models 数据库表结构（gorm）
package models

// All 返回需要迁移的模型，父表在前
func All() []any {
	return []any{
		&IAModel{},
		&PromptModel{},
		&IAConfigModel{},
		&LeadModel{},
	}
}
