package entity

// PromptSelector 激活提示词选择策略
type PromptSelector interface {
	// SelectActive 从提示词集合中选出激活项，没有时返回 nil
	SelectActive(prompts []*Prompt) *Prompt
}

// LowestIDSelector 在所有激活项中选择 ID 最小的一个，与集合顺序无关。
// 写路径已经保证单激活，这里只兜底历史数据中的多激活情况。
type LowestIDSelector struct{}

// SelectActive 实现 PromptSelector
func (LowestIDSelector) SelectActive(prompts []*Prompt) *Prompt {
	var selected *Prompt
	for _, p := range prompts {
		if p == nil || !p.IsActive() {
			continue
		}
		if selected == nil || p.ID() < selected.ID() {
			selected = p
		}
	}
	return selected
}

// DefaultPromptSelector 默认选择策略
var DefaultPromptSelector PromptSelector = LowestIDSelector{}
