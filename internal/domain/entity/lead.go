package entity

import (
	"strings"
	"time"
)

// Lead 线索实体，记录某个 IA 捕获到的联系人与对话
type Lead struct {
	id        uint
	iaID      uint
	name      *string
	phone     *string
	message   map[string]any
	resume    *string
	createdAt time.Time
	updatedAt time.Time
}

// NewLead 创建新的线索（工厂方法）
// 空白的 name/phone/resume 视为未提供
func NewLead(iaID uint, name, phone *string, message map[string]any, resume *string) (*Lead, error) {
	if iaID == 0 {
		return nil, ErrInvalidIAID
	}
	if message == nil {
		return nil, ErrEmptyLeadMessage
	}

	now := time.Now().UTC()
	return &Lead{
		iaID:      iaID,
		name:      NormalizeOptional(name),
		phone:     NormalizeOptional(phone),
		message:   message,
		resume:    NormalizeOptional(resume),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructLead 重建线索（用于从持久化层恢复）
func ReconstructLead(
	id, iaID uint,
	name, phone *string,
	message map[string]any,
	resume *string,
	createdAt, updatedAt time.Time,
) *Lead {
	return &Lead{
		id:        id,
		iaID:      iaID,
		name:      name,
		phone:     phone,
		message:   message,
		resume:    resume,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (l *Lead) ID() uint { return l.id }
func (l *Lead) IAID() uint { return l.iaID }
func (l *Lead) Name() *string { return l.name }
func (l *Lead) Phone() *string { return l.phone }
func (l *Lead) Message() map[string]any { return l.message }
func (l *Lead) Resume() *string { return l.resume }
func (l *Lead) CreatedAt() time.Time { return l.createdAt }
func (l *Lead) UpdatedAt() time.Time { return l.updatedAt }

// NormalizeOptional trims the value and maps blank strings to nil.
func NormalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
