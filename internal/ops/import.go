package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// MaxImportBytes bounds the size of an import file.
const MaxImportBytes = 64 << 20

// importSchema accepts an export envelope whose data carries object-shaped
// sessions and versions maps. Unknown fields are allowed.
const importSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["data"],
  "properties": {
    "exportDate": {"type": "string"},
    "version": {"type": "string"},
    "data": {
      "type": "object",
      "required": ["sessions", "versions"],
      "properties": {
        "sessions": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "properties": {
              "id": {"type": "string"},
              "platform": {"type": "string"},
              "versions": {"type": "array", "items": {"type": "string"}},
              "branches": {"type": "array", "items": {"type": "string"}}
            }
          }
        },
        "versions": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "properties": {
              "id": {"type": "string"},
              "sessionId": {"type": "string"},
              "prompt": {"type": "string"},
              "response": {"type": ["string", "null"]},
              "timestamp": {"type": "number"},
              "isCheckpoint": {"type": "boolean"}
            }
          }
        },
        "settings": {
          "type": "object",
          "properties": {
            "autoSave": {"type": "boolean"},
            "checkpointIntervalMinutes": {"type": "integer"},
            "maxVersions": {"type": "integer"}
          }
        }
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func loadImportSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, compileErr = compiler.Compile([]byte(importSchema))
	})
	return compiledSchema, compileErr
}

// ValidateImport checks raw against the import schema and decodes it.
// Any malformed payload fails with INVALID_FORMAT.
func ValidateImport(raw []byte) (*prompt.Export, error) {
	schema, err := loadImportSchema()
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("compile import schema: %w", err))
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.NewInvalidFormat(fmt.Sprintf("invalid JSON: %v", err))
	}

	result := schema.ValidateJSON(raw)
	if !result.IsValid() {
		return nil, errors.NewInvalidFormat(fmt.Sprintf("import data failed validation: %v", result.Errors))
	}

	var env prompt.Export
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.NewInvalidFormat(fmt.Sprintf("invalid import data: %v", err))
	}
	if env.Data == nil || env.Data.Sessions == nil || env.Data.Versions == nil {
		return nil, errors.NewInvalidFormat("import data must contain sessions and versions objects")
	}
	return &env, nil
}

// ImportOutput contains the result of an import.
type ImportOutput struct {
	MergeReport
	ImportedAt int64 `json:"importedAt"`
}

// ImportData validates an export envelope and merges it into the store
// in one atomic update.
func ImportData(ctx context.Context, store db.Backend, raw []byte) (*ImportOutput, error) {
	env, err := ValidateImport(raw)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	var report *MergeReport
	err = store.Update(ctx, func(d *prompt.Data) error {
		merged, r, err := Merge(d, env.Data, now)
		if err != nil {
			return err
		}
		*d = *merged
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ImportOutput{MergeReport: *report, ImportedAt: prompt.Millis(now)}, nil
}

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required, .json in an allowed directory
}

// Import reads an export file and merges it into the store.
func Import(ctx context.Context, store db.Backend, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if err := checkFilePath(input.Path, forImport, cfg); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := err.(*errors.ReviseError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(raw) > MaxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}

	return ImportData(ctx, store, raw)
}
