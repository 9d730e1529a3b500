// Package version holds build metadata for ccgateway.
package version

// Version is overridden at build time with
// -ldflags "-X github.com/fentz26/ccgateway/internal/version.Version=x.y.z".
var Version = "1.0.0"

// ServiceName identifies this service in health payloads.
const ServiceName = "claude-code-mcp-server"

// DisplayName is the human readable service name used in the service descriptor.
const DisplayName = "Claude Code MCP Server"
