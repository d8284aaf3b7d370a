package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/db"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"prompt_save_version": {
		def:     saveVersionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSaveVersion },
	},
	"prompt_get_history": {
		def:     getHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetHistory },
	},
	"prompt_get_version": {
		def:     getVersionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetVersion },
	},
	"prompt_create_checkpoint": {
		def:     createCheckpointToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateCheckpoint },
	},
	"prompt_create_branch": {
		def:     createBranchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateBranch },
	},
	"prompt_export_data": {
		def:     exportDataToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportData },
	},
	"prompt_import_data": {
		def:     importDataToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImportData },
	},
	"prompt_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"prompt_stats": {
		def:     statsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStats },
	},
	"prompt_classify": {
		def:     classifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassify },
	},
	"prompt_clear": {
		def:     clearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClear },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the prompt tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(store db.Backend, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"revise",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, cfg)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(store db.Backend, cfg *config.Config, version string) error {
	s := NewServer(store, cfg, version)
	return server.ServeStdio(s)
}
