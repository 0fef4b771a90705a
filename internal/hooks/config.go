package hooks

import (
	"errors"
	"strings"
)

// DefaultHostName names the host in the assistant prompt.
const DefaultHostName = "Cheshire Cat AI"

// Config holds hook configuration
type Config struct {
	// PromptPrefix enables the Document Manager Assistant prompt.
	PromptPrefix bool `koanf:"prompt_prefix" json:"prompt_prefix"`

	// FastReply answers document commands and quick phrases directly.
	FastReply bool `koanf:"fast_reply" json:"fast_reply"`

	// HostName appears in the assistant prompt.
	HostName string `koanf:"host_name" json:"host_name"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PromptPrefix: true,
		FastReply:    true,
		HostName:     DefaultHostName,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PromptPrefix && strings.TrimSpace(c.HostName) == "" {
		return errors.New("host_name is required when prompt_prefix is enabled")
	}
	return nil
}

// AssistantPrompt is the prefix used for document conversations.
func (c *Config) AssistantPrompt() string {
	return "You are the **Document Manager Assistant** for " + c.HostName + ".\n" +
		"Provide clear, professional responses in English. Output tool results " +
		"verbatim without modification. Focus on being helpful and accurate."
}
