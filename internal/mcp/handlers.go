package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/revise/internal/classify"
	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store db.Backend
	cfg   *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store db.Backend, cfg *config.Config) *Handlers {
	return &Handlers{store: store, cfg: cfg}
}

// Request types for each tool

// SaveVersionRequest represents the arguments for prompt_save_version.
type SaveVersionRequest struct {
	SessionID    string  `json:"session_id"`
	Prompt       string  `json:"prompt"`
	Response     *string `json:"response,omitempty"`
	Platform     string  `json:"platform,omitempty"`
	IsCheckpoint bool    `json:"is_checkpoint,omitempty"`
	ChangeType   string  `json:"change_type,omitempty"`
}

// GetHistoryRequest represents the arguments for prompt_get_history.
type GetHistoryRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// GetVersionRequest represents the arguments for prompt_get_version.
type GetVersionRequest struct {
	VersionID string `json:"version_id"`
}

// CreateCheckpointRequest represents the arguments for prompt_create_checkpoint.
type CreateCheckpointRequest struct {
	VersionID   string  `json:"version_id,omitempty"`
	SessionID   string  `json:"session_id,omitempty"`
	Prompt      string  `json:"prompt,omitempty"`
	Response    *string `json:"response,omitempty"`
	Platform    string  `json:"platform,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
}

// CreateBranchRequest represents the arguments for prompt_create_branch.
type CreateBranchRequest struct {
	VersionID string `json:"version_id"`
	SeedText  string `json:"seed_text,omitempty"`
}

// ExportDataRequest represents the arguments for prompt_export_data.
type ExportDataRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Path      string `json:"path,omitempty"`
	ToFile    bool   `json:"to_file,omitempty"`
}

// ImportDataRequest represents the arguments for prompt_import_data.
type ImportDataRequest struct {
	Path string          `json:"path,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SearchRequest represents the arguments for prompt_search.
type SearchRequest struct {
	Query            string `json:"query"`
	SessionID        string `json:"session_id,omitempty"`
	IncludeResponses bool   `json:"include_responses,omitempty"`
	Limit            int    `json:"limit,omitempty"`
}

// StatsRequest represents the arguments for prompt_stats.
type StatsRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// ClassifyRequest represents the arguments for prompt_classify.
type ClassifyRequest struct {
	OldText string `json:"old_text,omitempty"`
	NewText string `json:"new_text"`
}

// Handler implementations

// HandleSaveVersion handles the prompt_save_version tool call.
func (h *Handlers) HandleSaveVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveVersionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AppendVersion(ctx, h.store, ops.AppendInput{
		SessionID:    input.SessionID,
		Prompt:       input.Prompt,
		Response:     input.Response,
		Platform:     h.cfg.Platform(input.Platform),
		IsCheckpoint: input.IsCheckpoint,
		ChangeType:   classify.ChangeType(input.ChangeType),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGetHistory handles the prompt_get_history tool call.
func (h *Handlers) HandleGetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetHistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetHistory(ctx, h.store, ops.HistoryInput{
		SessionID: input.SessionID,
		Limit:     h.cfg.Limit(input.Limit),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGetVersion handles the prompt_get_version tool call.
func (h *Handlers) HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetVersionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetVersion(ctx, h.store, input.VersionID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCreateCheckpoint handles the prompt_create_checkpoint tool call.
// A version_id promotes that version; otherwise session_id and prompt
// record a new checkpoint.
func (h *Handlers) HandleCreateCheckpoint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateCheckpointRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if strings.TrimSpace(input.VersionID) != "" {
		if input.SessionID != "" || input.Prompt != "" {
			return errorResult(errors.NewInvalidRequest("version_id cannot be combined with session_id or prompt")), nil
		}
		result, err := ops.PromoteToCheckpoint(ctx, h.store, ops.PromoteInput{
			VersionID:   input.VersionID,
			Name:        input.Name,
			Description: input.Description,
		})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := ops.CreateCheckpoint(ctx, h.store, ops.CheckpointInput{
		SessionID:   input.SessionID,
		Prompt:      input.Prompt,
		Response:    input.Response,
		Platform:    h.cfg.Platform(input.Platform),
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCreateBranch handles the prompt_create_branch tool call.
func (h *Handlers) HandleCreateBranch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateBranchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateBranch(ctx, h.store, ops.BranchInput{
		VersionID: input.VersionID,
		SeedText:  input.SeedText,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExportData handles the prompt_export_data tool call.
func (h *Handlers) HandleExportData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportDataRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Path != "" || input.ToFile {
		result, err := ops.Export(ctx, h.store, h.cfg, ops.ExportInput{
			Path:      input.Path,
			SessionID: input.SessionID,
		})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	if input.SessionID != "" {
		result, err := ops.ExportSession(ctx, h.store, input.SessionID)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := ops.ExportData(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImportData handles the prompt_import_data tool call.
func (h *Handlers) HandleImportData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportDataRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	hasData := len(input.Data) > 0 && string(input.Data) != "null"
	switch {
	case input.Path != "" && hasData:
		return errorResult(errors.NewInvalidRequest("provide either path or data, not both")), nil
	case input.Path != "":
		result, err := ops.Import(ctx, h.store, h.cfg, ops.ImportInput{Path: input.Path})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	case hasData:
		result, err := ops.ImportData(ctx, h.store, input.Data)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	default:
		return errorResult(errors.NewInvalidRequest("path or data is required")), nil
	}
}

// HandleSearch handles the prompt_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.store, ops.SearchInput{
		Query:            input.Query,
		SessionID:        input.SessionID,
		IncludeResponses: input.IncludeResponses,
		Limit:            input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStats handles the prompt_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if strings.TrimSpace(input.SessionID) != "" {
		result, err := ops.SessionStats(ctx, h.store, input.SessionID)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := ops.Stats(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClassify handles the prompt_classify tool call.
func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.NewText) == "" {
		return errorResult(errors.NewInvalidRequest("new_text is required")), nil
	}

	return successResult(classify.Analyze(input.OldText, input.NewText))
}

// HandleClear handles the prompt_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Clear(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{"error": errors.Payload(err)})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
