package entity

import (
	"strings"
	"time"
)

// Prompt 提示词实体，同一 IA 下至多一个处于激活状态
type Prompt struct {
	id        uint
	iaID      uint
	text      string
	active    bool
	version   int
	createdAt time.Time
	updatedAt time.Time
}

// NewPrompt 创建新的提示词（工厂方法）
func NewPrompt(iaID uint, text string, active bool) (*Prompt, error) {
	if iaID == 0 {
		return nil, ErrInvalidIAID
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPromptText
	}

	now := time.Now().UTC()
	return &Prompt{
		iaID:      iaID,
		text:      text,
		active:    active,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructPrompt 重建提示词（用于从持久化层恢复）
func ReconstructPrompt(
	id, iaID uint,
	text string,
	active bool,
	version int,
	createdAt, updatedAt time.Time,
) *Prompt {
	return &Prompt{
		id:        id,
		iaID:      iaID,
		text:      text,
		active:    active,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (p *Prompt) ID() uint { return p.id }
func (p *Prompt) IAID() uint { return p.iaID }
func (p *Prompt) Text() string { return p.text }
func (p *Prompt) IsActive() bool { return p.active }
func (p *Prompt) Version() int { return p.version }
func (p *Prompt) CreatedAt() time.Time { return p.createdAt }
func (p *Prompt) UpdatedAt() time.Time { return p.updatedAt }
