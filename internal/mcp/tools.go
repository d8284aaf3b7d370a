package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var saveVersionToolDef = mcp.NewTool("prompt_save_version",
	mcp.WithDescription("Record a prompt version in a session. The session is created on first use. "+
		"Without change_type the prompt is classified against the session's latest version."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to append to")),
	mcp.WithString("prompt", mcp.Required(), mcp.Description("Prompt text; whitespace is normalized")),
	mcp.WithString("response", mcp.Description("Captured reply for this prompt")),
	mcp.WithString("platform", mcp.Description("Source platform (chatgpt, gemini, claude)")),
	mcp.WithBoolean("is_checkpoint", mcp.Description("Store as a checkpoint")),
	mcp.WithString("change_type", mcp.Description("Override the classification"),
		mcp.Enum("new_prompt", "copy_paste_edit", "major_rewrite", "detail_addition", "refinement", "minor_edit", "general_edit")),
)

var getHistoryToolDef = mcp.NewTool("prompt_get_history",
	mcp.WithDescription("List recently updated sessions, or one session's versions newest first. "+
		"An unknown session returns an empty placeholder with found=false."),
	mcp.WithString("session_id", mcp.Description("Session to read; omit to list sessions")),
	mcp.WithNumber("limit", mcp.Description("Maximum items (default 50, max 1000)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getVersionToolDef = mcp.NewTool("prompt_get_version",
	mcp.WithDescription("Fetch one stored version, e.g. to restore its text."),
	mcp.WithString("version_id", mcp.Required(), mcp.Description("Version id")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var createCheckpointToolDef = mcp.NewTool("prompt_create_checkpoint",
	mcp.WithDescription("Promote an existing version (version_id) to a named checkpoint, "+
		"or record new text (session_id + prompt) as a checkpoint."),
	mcp.WithString("version_id", mcp.Description("Version to promote")),
	mcp.WithString("session_id", mcp.Description("Session for a new checkpoint")),
	mcp.WithString("prompt", mcp.Description("Text for a new checkpoint")),
	mcp.WithString("response", mcp.Description("Reply stored with a new checkpoint")),
	mcp.WithString("platform", mcp.Description("Source platform for a new checkpoint")),
	mcp.WithString("name", mcp.Description("Checkpoint name")),
	mcp.WithString("description", mcp.Description("Checkpoint description")),
)

var createBranchToolDef = mcp.NewTool("prompt_create_branch",
	mcp.WithDescription("Fork a new session from a version. The seed text becomes the first checkpoint of the new session; the source session is not modified."),
	mcp.WithString("version_id", mcp.Required(), mcp.Description("Version to branch from")),
	mcp.WithString("seed_text", mcp.Description("First prompt of the branch (default: the source version's prompt)")),
)

var exportDataToolDef = mcp.NewTool("prompt_export_data",
	mcp.WithDescription("Export the store (or one session) as {exportDate, version, data}. "+
		"With path or to_file the export is written to a .json file."),
	mcp.WithString("session_id", mcp.Description("Restrict the export to one session")),
	mcp.WithString("path", mcp.Description("Output file (must be in an allowed directory)")),
	mcp.WithBoolean("to_file", mcp.Description("Write to the default exports directory")),
)

var importDataToolDef = mcp.NewTool("prompt_import_data",
	mcp.WithDescription("Merge an export into the store. Colliding session and version ids from the import are renamed with an _imported_<ms> suffix."),
	mcp.WithString("path", mcp.Description("Export file to read")),
	mcp.WithObject("data", mcp.Description("Export document given inline")),
)

var searchToolDef = mcp.NewTool("prompt_search",
	mcp.WithDescription("Case-insensitive substring search over stored prompts, newest first."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Text to find")),
	mcp.WithString("session_id", mcp.Description("Restrict to one session")),
	mcp.WithBoolean("include_responses", mcp.Description("Also match captured replies")),
	mcp.WithNumber("limit", mcp.Description("Maximum results (default 100, max 1000)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statsToolDef = mcp.NewTool("prompt_stats",
	mcp.WithDescription("Store size and counts, or per-session counts when session_id is given."),
	mcp.WithString("session_id", mcp.Description("Session to summarize")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var classifyToolDef = mcp.NewTool("prompt_classify",
	mcp.WithDescription("Classify an edit and report whether autosave would record it."),
	mcp.WithString("old_text", mcp.Description("Previous prompt (empty for a new prompt)")),
	mcp.WithString("new_text", mcp.Required(), mcp.Description("Edited prompt")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var clearToolDef = mcp.NewTool("prompt_clear",
	mcp.WithDescription("Permanently delete every session and version."),
	mcp.WithDestructiveHintAnnotation(true),
)
