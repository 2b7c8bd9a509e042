package pipeline

import "sync"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMContext is the conversation transcript of one session. It is shared by
// the user and assistant aggregators and read by the LLM stage.
type LLMContext struct {
	mu       sync.RWMutex
	messages []Message
}

func NewLLMContext(messages ...Message) *LLMContext {
	c := &LLMContext{}
	c.messages = append(c.messages, messages...)
	return c
}

func (c *LLMContext) Add(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{Role: role, Content: content})
}

func (c *LLMContext) AddMessages(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy safe to hand to a model call.
func (c *LLMContext) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *LLMContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
