// Package mcp exposes the document commands as MCP tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// on the stdio transport. Every chat command is registered as a tool that
// returns the command text, alongside structured tools for search, listing
// and statistics, and tool_search for discovery.
package mcp
