package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/schema"
)

const (
	ToolFileRead  = "file_read"
	ToolFileWrite = "file_write"
)

// maxFileReadBytes bounds what a single read can pull into the
// conversation.
const maxFileReadBytes = 64 * 1024

// resolveSandboxPath joins a requested path against the sandbox root and
// rejects anything that escapes it.
func resolveSandboxPath(sandbox, requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		return "", fmt.Errorf("path is required")
	}
	root, err := filepath.Abs(sandbox)
	if err != nil {
		return "", fmt.Errorf("resolve sandbox dir: %w", err)
	}
	full := requested
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, requested)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the sandbox directory", requested)
	}
	return full, nil
}

// =========== file_read (read-only) ===========

type FileReadInput struct {
	Path string `json:"path"`
}

type FileRead struct {
	sandbox string
}

func NewFileRead(sandbox string) *FileRead {
	return &FileRead{sandbox: sandbox}
}

func (t *FileRead) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolFileRead,
		Desc: "Read a text file from the sandbox directory.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"path": {
				Type:     "string",
				Desc:     "File path relative to the sandbox directory",
				Required: true,
			},
		}),
	}
}

func (t *FileRead) Risk() RiskClass {
	return RiskReadOnly
}

func (t *FileRead) Validate(input json.RawMessage) error {
	var in FileReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("file_read input must be a JSON object: %w", err)
	}
	_, err := resolveSandboxPath(t.sandbox, in.Path)
	return err
}

func (t *FileRead) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in FileReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("unmarshal input: %w", err)
	}
	full, err := resolveSandboxPath(t.sandbox, in.Path)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if len(raw) > maxFileReadBytes {
		raw = raw[:maxFileReadBytes]
	}
	return string(raw), nil
}

// =========== file_write (side-effecting) ===========

type FileWriteInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type FileWrite struct {
	sandbox string
}

func NewFileWrite(sandbox string) *FileWrite {
	return &FileWrite{sandbox: sandbox}
}

func (t *FileWrite) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolFileWrite,
		Desc: "Write a text file inside the sandbox directory. This changes external state and requires confirmation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"path": {
				Type:     "string",
				Desc:     "File path relative to the sandbox directory",
				Required: true,
			},
			"content": {
				Type:     "string",
				Desc:     "Full file content to write",
				Required: true,
			},
		}),
	}
}

func (t *FileWrite) Risk() RiskClass {
	return RiskSideEffecting
}

func (t *FileWrite) Validate(input json.RawMessage) error {
	var in FileWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("file_write input must be a JSON object: %w", err)
	}
	_, err := resolveSandboxPath(t.sandbox, in.Path)
	return err
}

func (t *FileWrite) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in FileWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("unmarshal input: %w", err)
	}
	full, err := resolveSandboxPath(t.sandbox, in.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.WriteFile(full, []byte(in.Content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf(`{"written":%d}`, len(in.Content)), nil
}

var (
	_ Tool = (*FileRead)(nil)
	_ Tool = (*FileWrite)(nil)
)
