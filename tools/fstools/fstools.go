// Package fstools implements the file read/write/list tools: paths are
// resolved relative to a configured base directory, with a denied-path
// list enforced per tool. Each tool is constructed against its own fs.FS,
// so a single Registry can hold tools scoped to different base
// directories side by side.
package fstools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/nrcarlson/mcpcore/schema"
	"github.com/nrcarlson/mcpcore/tool"
)

// denier enforces a per-tool denied-path list on top of an fs.FS. Paths are
// matched after path.Clean, against both exact entries and path prefixes
// ("logs" denies "logs/today.log" too).
type denier struct {
	fsys   fs.FS
	denied []string
}

func newDenier(fsys fs.FS, denied []string) denier {
	cleaned := make([]string, 0, len(denied))
	for _, d := range denied {
		d = strings.TrimPrefix(path.Clean(d), "/")
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return denier{fsys: fsys, denied: cleaned}
}

func (d denier) clean(p string) string {
	// Rooting the path before cleaning drops any leading "..", so the result
	// never climbs above the base directory ("../a.txt" becomes "a.txt").
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		p = "."
	}
	return p
}

func (d denier) check(p string) error {
	for _, deny := range d.denied {
		if p == deny || strings.HasPrefix(p, deny+"/") {
			return fmt.Errorf("path %q is denied", p)
		}
	}
	return nil
}

// NewOSFS returns an fs.FS rooted at dir for production use; tests instead
// pass a github.com/psanford/memfs.FS so nothing touches the real disk. The
// returned os.DirFS is read-only: the read and list tools work on it, the
// write tool does not (see WriteFileTool).
func NewOSFS(dir string) fs.FS {
	return os.DirFS(dir)
}

// ReadFileRequest is the input for ReadFileTool.
type ReadFileRequest struct {
	Path string `json:"path"`
}

// ReadFileResult is the output of ReadFileTool.
type ReadFileResult struct {
	Content string `json:"content"`
}

// ReadFileTool reads a single file under its base directory.
type ReadFileTool struct {
	d denier
}

// NewReadFileTool builds a ReadFileTool scoped to fsys, rejecting any path
// under denied.
func NewReadFileTool(fsys fs.FS, denied []string) *ReadFileTool {
	return &ReadFileTool{d: newDenier(fsys, denied)}
}

func (t *ReadFileTool) Metadata() tool.Metadata {
	return tool.Metadata{
		ID:          "file_read",
		Name:        "Read File",
		Description: "Reads the contents of a file relative to the configured base directory.",
		Category:    "filesystem",
		InputSchema: &schema.JSON{
			Type:       schema.Object,
			Required:   []string{"path"},
			Properties: map[string]*schema.JSON{"path": {Type: schema.String, Description: "File path, relative to the base directory"}},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req ReadFileRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	p := t.d.clean(req.Path)
	if err := t.d.check(p); err != nil {
		return nil, err
	}

	f, err := t.d.fsys.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	return json.Marshal(ReadFileResult{Content: string(content)})
}

// WriteFileRequest is the input for WriteFileTool.
type WriteFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFileResult is the output of WriteFileTool.
type WriteFileResult struct {
	BytesWritten int `json:"bytes_written"`
}

type mkdirAller interface {
	MkdirAll(path string, perm os.FileMode) error
}

type writer interface {
	WriteFile(path string, data []byte, perm os.FileMode) error
}

// WriteFileTool writes a single file under its base directory. The
// underlying fs.FS must additionally implement writer (and, for nested
// paths, mkdirAller) — github.com/psanford/memfs.FS does. The os.DirFS that
// NewOSFS returns implements neither, so on it Execute returns the
// read-only error and writes nothing.
type WriteFileTool struct {
	d denier
}

// NewWriteFileTool builds a WriteFileTool scoped to fsys, rejecting any path
// under denied.
func NewWriteFileTool(fsys fs.FS, denied []string) *WriteFileTool {
	return &WriteFileTool{d: newDenier(fsys, denied)}
}

func (t *WriteFileTool) Metadata() tool.Metadata {
	return tool.Metadata{
		ID:          "file_write",
		Name:        "Write File",
		Description: "Writes content to a file relative to the configured base directory, creating parent directories as needed.",
		Category:    "filesystem",
		InputSchema: &schema.JSON{
			Type:     schema.Object,
			Required: []string{"path", "content"},
			Properties: map[string]*schema.JSON{
				"path":    {Type: schema.String, Description: "File path, relative to the base directory"},
				"content": {Type: schema.String, Description: "Content to write"},
			},
		},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req WriteFileRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	p := t.d.clean(req.Path)
	if err := t.d.check(p); err != nil {
		return nil, err
	}

	if dir := path.Dir(p); dir != "." && dir != "/" {
		if m, ok := t.d.fsys.(mkdirAller); ok {
			if err := m.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	w, ok := t.d.fsys.(writer)
	if !ok {
		return nil, fmt.Errorf("file_write: underlying filesystem is read-only")
	}
	if err := w.WriteFile(p, []byte(req.Content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", p, err)
	}

	return json.Marshal(WriteFileResult{BytesWritten: len(req.Content)})
}

// ListDirRequest is the input for ListDirTool.
type ListDirRequest struct {
	Path string `json:"path,omitempty"`
}

// DirEntry describes one entry returned by ListDirTool.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// ListDirResult is the output of ListDirTool.
type ListDirResult struct {
	Entries []DirEntry `json:"entries"`
}

// ListDirTool lists the immediate children of a directory under its base
// directory.
type ListDirTool struct {
	d denier
}

// NewListDirTool builds a ListDirTool scoped to fsys, rejecting any path
// under denied.
func NewListDirTool(fsys fs.FS, denied []string) *ListDirTool {
	return &ListDirTool{d: newDenier(fsys, denied)}
}

func (t *ListDirTool) Metadata() tool.Metadata {
	return tool.Metadata{
		ID:          "list_dir",
		Name:        "List Directory",
		Description: "Lists the immediate children of a directory relative to the configured base directory.",
		Category:    "filesystem",
		InputSchema: &schema.JSON{
			Type:       schema.Object,
			Properties: map[string]*schema.JSON{"path": {Type: schema.String, Description: "Directory path, relative to the base directory; defaults to the base directory itself"}},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req ListDirRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	p := t.d.clean(req.Path)
	if err := t.d.check(p); err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(t.d.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", p, err)
	}

	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return json.Marshal(ListDirResult{Entries: out})
}
