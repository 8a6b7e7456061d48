package models

import (
	"time"

	"gorm.io/datatypes"
)

// LeadModel 数据库线索模型
type LeadModel struct {
	ID        uint           `gorm:"primaryKey"`
	IAID      uint           `gorm:"column:ia_id;not null;index"`
	Name      *string        `gorm:"size:255"`
	Phone     *string        `gorm:"size:64;uniqueIndex"` // NULL 不参与唯一约束
	Message   datatypes.JSON `gorm:"not null"`
	Resume    *string        `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (LeadModel) TableName() string {
	return "leads"
}
