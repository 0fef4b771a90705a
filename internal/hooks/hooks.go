package hooks

import (
	"context"
	"fmt"
	"sort"
)

// HookType represents different lifecycle hooks
type HookType string

const (
	// HookAgentPromptPrefix may replace the agent's system prompt prefix.
	HookAgentPromptPrefix HookType = "agent_prompt_prefix"

	// HookAgentFastReply may answer a message without involving the agent.
	HookAgentFastReply HookType = "agent_fast_reply"

	// HookAfterBootstrap is called once the host has started.
	HookAfterBootstrap HookType = "after_bootstrap"
)

// Keys of the data map passed to handlers.
const (
	KeyUserMessage = "user_message"
	KeyPrefix      = "prefix"
	KeyOutput      = "output"
	KeyCaller      = "caller"
)

// Default priorities.
const (
	PriorityPromptPrefix = 100
	PriorityFastReply    = 10
	PriorityDefault      = 1
)

// HookHandler handles a hook event. Handlers communicate by reading and
// writing data.
type HookHandler func(ctx context.Context, data map[string]interface{}) error

type registration struct {
	priority int
	handler  HookHandler
}

// HookManager manages lifecycle hooks
type HookManager struct {
	config   *Config
	handlers map[HookType][]registration
}

// NewHookManager creates a new hook manager
func NewHookManager(config *Config) *HookManager {
	if config == nil {
		config = DefaultConfig()
	}
	return &HookManager{
		config:   config,
		handlers: make(map[HookType][]registration),
	}
}

// RegisterHandler registers a handler for a hook type. Handlers run in
// descending priority; equal priorities run in registration order.
func (h *HookManager) RegisterHandler(hookType HookType, priority int, handler HookHandler) {
	regs := append(h.handlers[hookType], registration{priority: priority, handler: handler})
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].priority > regs[j].priority })
	h.handlers[hookType] = regs
}

// Execute executes all handlers for the given hook type
func (h *HookManager) Execute(ctx context.Context, hookType HookType, data map[string]interface{}) error {
	regs, ok := h.handlers[hookType]
	if !ok {
		// No handlers registered - not an error
		return nil
	}

	for _, reg := range regs {
		if err := reg.handler(ctx, data); err != nil {
			return fmt.Errorf("hook %s failed: %w", hookType, err)
		}
	}

	return nil
}

// PromptPrefix runs the prompt prefix hooks and returns the resulting prefix.
func (h *HookManager) PromptPrefix(ctx context.Context, message, prefix string) (string, error) {
	data := map[string]interface{}{KeyUserMessage: message, KeyPrefix: prefix}
	if err := h.Execute(ctx, HookAgentPromptPrefix, data); err != nil {
		return prefix, err
	}
	out, _ := data[KeyPrefix].(string)
	return out, nil
}

// FastReply runs the fast reply hooks. ok is false when no hook answered.
func (h *HookManager) FastReply(ctx context.Context, message string, caller any) (reply string, ok bool, err error) {
	data := map[string]interface{}{KeyUserMessage: message, KeyCaller: caller}
	if err := h.Execute(ctx, HookAgentFastReply, data); err != nil {
		return "", false, err
	}
	reply, ok = data[KeyOutput].(string)
	return reply, ok, nil
}

// Config returns the hook configuration
func (h *HookManager) Config() *Config {
	return h.config
}
