// Package mcp exposes the duplicate detector as an MCP tool.
//
// The server registers a single tool, ticket_check, which takes the same
// fields as POST /api/v1/tickets/check and returns the same report as
// structured content. It is normally served on the stdio transport.
package mcp
