// Package hooks runs the host's lifecycle hooks for the document manager.
//
// Supports agent_prompt_prefix, agent_fast_reply and after_bootstrap.
// Handlers of one hook type run in descending priority and share a data
// map: the prompt prefix hook rewrites KeyPrefix, fast reply hooks set
// KeyOutput to answer without the agent.
package hooks
