package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestReviseError_Error(t *testing.T) {
	err := &ReviseError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "version not found: v1",
	}

	expected := "NOT_FOUND: version not found: v1"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("session_id is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "session_id is required" {
		t.Errorf("Message = %q, want %q", err.Message, "session_id is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("version", "01HX")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["kind"] != "version" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "version")
	}
	if err.Details["id"] != "01HX" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01HX")
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/missing.json")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Details["path"] != "/tmp/missing.json" {
		t.Errorf("Details[path] = %v", err.Details["path"])
	}
}

func TestNewInvalidFormat(t *testing.T) {
	err := NewInvalidFormat("data.sessions must be an object")

	if err.Code != ErrInvalidFormat {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidFormat)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
}

func TestNewStorageFailure(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStorageFailure("save", cause)

	if err.Code != ErrStorageFailure {
		t.Errorf("Code = %q, want %q", err.Code, ErrStorageFailure)
	}
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
	if !stderrors.Is(err, cause) {
		t.Error("StorageFailure should unwrap to its cause")
	}
	if err.Message != "storage save failed: disk full" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("export")

	if err.Code != ErrCancelled {
		t.Errorf("Code = %q, want %q", err.Code, ErrCancelled)
	}
	if err.Message != "export cancelled" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewInternal(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"with error", fmt.Errorf("boom"), "boom"},
		{"nil error", nil, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewInternal(tt.err)
			if err.Code != ErrInternal {
				t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
			}
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
		})
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("version", "x"), ErrNotFound, true},
		{"different code", NewNotFound("version", "x"), ErrInvalidFormat, false},
		{"wrapped", fmt.Errorf("append: %w", NewNotFound("session", "s")), ErrNotFound, true},
		{"plain error", fmt.Errorf("plain"), ErrNotFound, false},
		{"nil", nil, ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	nf := NewNotFound("version", "v1")
	if got := As(fmt.Errorf("wrap: %w", nf)); got != nf {
		t.Errorf("As() = %v, want original error", got)
	}

	got := As(fmt.Errorf("plain"))
	if got.Code != ErrInternal {
		t.Errorf("As(plain).Code = %q, want %q", got.Code, ErrInternal)
	}
}

func TestPayload(t *testing.T) {
	t.Run("not found keeps details", func(t *testing.T) {
		p := Payload(NewNotFound("version", "v1"))
		if p["code"] != "NOT_FOUND" || p["status"] != 404 {
			t.Fatalf("payload = %v", p)
		}
		if _, ok := p["details"]; !ok {
			t.Error("expected details for NOT_FOUND")
		}
	})

	t.Run("wrapped keeps context", func(t *testing.T) {
		p := Payload(fmt.Errorf("import: %w", NewInvalidFormat("bad sessions")))
		if p["code"] != "INVALID_FORMAT" {
			t.Fatalf("code = %v", p["code"])
		}
		if p["message"] != "import: bad sessions" {
			t.Errorf("message = %q", p["message"])
		}
	})

	t.Run("internal hides cause", func(t *testing.T) {
		p := Payload(NewInternal(fmt.Errorf("open /secret.db: denied")))
		if p["message"] != "an internal error occurred" {
			t.Errorf("message = %q", p["message"])
		}
		if _, ok := p["details"]; ok {
			t.Error("INTERNAL must not carry details")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		p := Payload(fmt.Errorf("boom"))
		if p["code"] != "INTERNAL" || p["status"] != 500 {
			t.Fatalf("payload = %v", p)
		}
	})
}
