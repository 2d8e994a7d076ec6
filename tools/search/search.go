// Package search implements the grep and find tools: regex content search
// and name-glob file search, each bounded by a max-matches/max-files limit
// and a denied-path list.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nrcarlson/mcpcore/internal/logging"
	"github.com/nrcarlson/mcpcore/schema"
	"github.com/nrcarlson/mcpcore/tool"
)

var log = logging.For("tools/search")

const (
	defaultMaxMatches = 1000
	defaultMaxFiles   = 1000
)

// isPathAllowed reports whether p contains none of the denied entries as a
// substring; an entry matches anywhere in p, not only as a leading directory.
func isPathAllowed(p string, denied []string) bool {
	for _, d := range denied {
		if d == "" {
			continue
		}
		if strings.Contains(p, d) {
			return false
		}
	}
	return true
}

// GrepRequest is the input for GrepTool.
type GrepRequest struct {
	Pattern       string `json:"pattern"`
	Path          string `json:"path,omitempty"`
	Include       string `json:"include,omitempty"`
	Exclude       string `json:"exclude,omitempty"`
	MaxMatches    int    `json:"max_matches,omitempty"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	NotRecursive  bool   `json:"not_recursive,omitempty"`
}

// GrepMatch is a single matching line.
type GrepMatch struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Column int    `json:"column"`
}

// GrepResult is the output of GrepTool.
type GrepResult struct {
	Matches       []GrepMatch `json:"matches"`
	TotalMatches  int         `json:"total_matches"`
	SearchedFiles int         `json:"searched_files"`
}

// GrepTool searches file contents under Root for lines matching a regular
// expression.
type GrepTool struct {
	Root   string
	Denied []string
}

// NewGrepTool builds a GrepTool rooted at root.
func NewGrepTool(root string, denied []string) *GrepTool {
	return &GrepTool{Root: root, Denied: denied}
}

func (t *GrepTool) Metadata() tool.Metadata {
	return tool.Metadata{
		ID:          "grep",
		Name:        "Grep",
		Description: "Search for patterns in file contents using regular expressions, bounded by max matches and max files searched.",
		Category:    "search",
		InputSchema: &schema.JSON{
			Type:     schema.Object,
			Required: []string{"pattern"},
			Properties: map[string]*schema.JSON{
				"pattern":        {Type: schema.String, Description: "Regular expression pattern to search for"},
				"path":           {Type: schema.String, Description: "Directory to search, relative to the tool's root (default: root)"},
				"include":        {Type: schema.String, Description: "Glob pattern for files to include (e.g. '*.go')"},
				"exclude":        {Type: schema.String, Description: "Glob pattern for files to exclude"},
				"max_matches":    {Type: "integer", Description: "Maximum number of matches to return"},
				"case_sensitive": {Type: "boolean", Description: "Whether the match is case sensitive (default false)"},
			},
		},
	}
}

func (t *GrepTool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req GrepRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if req.Pattern == "" {
		return nil, fmt.Errorf("missing required parameter: pattern")
	}

	maxMatches := req.MaxMatches
	if maxMatches <= 0 {
		maxMatches = defaultMaxMatches
	}

	expr := req.Pattern
	if !req.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	root := t.Root
	if req.Path != "" {
		root = filepath.Join(t.Root, req.Path)
	}

	var (
		matches       []GrepMatch
		searchedFiles int
	)

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if req.NotRecursive && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= maxMatches || searchedFiles >= defaultMaxFiles {
			return fs.SkipAll
		}

		rel, relErr := filepath.Rel(t.Root, p)
		if relErr != nil {
			rel = p
		}
		if !isPathAllowed(rel, t.Denied) {
			return nil
		}

		name := d.Name()
		if req.Include != "" {
			if ok, _ := path.Match(req.Include, name); !ok {
				return nil
			}
		}
		if req.Exclude != "" {
			if ok, _ := path.Match(req.Exclude, name); ok {
				return nil
			}
		}

		fileMatches, err := grepFile(p, rel, re, maxMatches-len(matches))
		if err != nil {
			log.Debug("skipping unreadable file", "path", p, "err", err)
			return nil
		}
		searchedFiles++
		if len(fileMatches) > 0 {
			matches = append(matches, fileMatches...)
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if err == context.Canceled {
		return nil, err
	}

	return json.Marshal(GrepResult{Matches: matches, TotalMatches: len(matches), SearchedFiles: searchedFiles})
}

func grepFile(absPath, relPath string, re *regexp.Regexp, remaining int) ([]GrepMatch, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	var out []GrepMatch
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if len(out) >= remaining {
			break
		}
		if loc := re.FindStringIndex(line); loc != nil {
			out = append(out, GrepMatch{File: relPath, Line: i + 1, Column: loc[0] + 1, Text: line})
		}
	}
	return out, nil
}

// FindRequest is the input for FindTool.
type FindRequest struct {
	Pattern  string `json:"pattern"`
	Path     string `json:"path,omitempty"`
	Exclude  string `json:"exclude,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

// FindEntry is a single matching path.
type FindEntry struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir"`
}

// FindResult is the output of FindTool.
type FindResult struct {
	Entries      []FindEntry `json:"entries"`
	TotalMatches int         `json:"total_matches"`
}

const defaultMaxDepth = 10

// FindTool finds files under Root whose name matches a glob pattern.
type FindTool struct {
	Root     string
	Denied   []string
	MaxFiles int
}

// NewFindTool builds a FindTool rooted at root.
func NewFindTool(root string, denied []string) *FindTool {
	return &FindTool{Root: root, Denied: denied, MaxFiles: defaultMaxFiles}
}

func (t *FindTool) Metadata() tool.Metadata {
	return tool.Metadata{
		ID:          "find",
		Name:        "Find",
		Description: "Find files matching a name glob pattern, bounded by max depth and max files.",
		Category:    "search",
		InputSchema: &schema.JSON{
			Type:     schema.Object,
			Required: []string{"pattern"},
			Properties: map[string]*schema.JSON{
				"pattern":   {Type: schema.String, Description: "Glob pattern to match file names (e.g. '*.go')"},
				"path":      {Type: schema.String, Description: "Directory to search, relative to the tool's root (default: root)"},
				"exclude":   {Type: schema.String, Description: "Glob pattern for files to exclude"},
				"max_depth": {Type: "integer", Description: "Maximum directory depth to descend"},
			},
		},
	}
}

func (t *FindTool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req FindRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if req.Pattern == "" {
		return nil, fmt.Errorf("missing required parameter: pattern")
	}

	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	maxFiles := t.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}

	root := t.Root
	if req.Path != "" {
		root = filepath.Join(t.Root, req.Path)
	}
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	var entries []FindEntry

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(entries) >= maxFiles {
			return fs.SkipAll
		}

		depth := strings.Count(filepath.Clean(p), string(filepath.Separator)) - rootDepth
		if d.IsDir() && depth > maxDepth {
			return filepath.SkipDir
		}

		rel, relErr := filepath.Rel(t.Root, p)
		if relErr != nil {
			rel = p
		}
		if !isPathAllowed(rel, t.Denied) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if ok, _ := path.Match(req.Pattern, name); !ok {
			return nil
		}
		if req.Exclude != "" {
			if ok, _ := path.Match(req.Exclude, name); ok {
				return nil
			}
		}

		info, err := d.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		entries = append(entries, FindEntry{Path: rel, Name: name, Size: size, IsDir: d.IsDir()})
		return nil
	})
	if err != nil && err != context.Canceled {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if err == context.Canceled {
		return nil, err
	}

	return json.Marshal(FindResult{Entries: entries, TotalMatches: len(entries)})
}
