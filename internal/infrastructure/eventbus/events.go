package eventbus

// 预定义事件类型常量
const (
	EventTypeIACreated       = "ia.created"
	EventTypeIAUpdated       = "ia.updated"
	EventTypeIADeleted       = "ia.deleted"
	EventTypePromptCreated   = "prompt.created"
	EventTypePromptUpdated   = "prompt.updated"
	EventTypePromptDeleted   = "prompt.deleted"
	EventTypePromptActivated = "prompt.activated"
	EventTypeConfigUpdated   = "config.updated"
	EventTypeLeadCreated     = "lead.created"
	EventTypeLeadUpdated     = "lead.updated"
	EventTypeLeadDeleted     = "lead.deleted"
)

// ChangePayload 实体变更事件载荷，不携带凭据等敏感字段
type ChangePayload struct {
	Entity  string `json:"entity"` // ia, prompt, config, lead
	ID      uint   `json:"id"`
	IAID    uint   `json:"ia_id"`
	Version int    `json:"version,omitempty"`
}
