package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/robertftenbosch/parakeet/config"
	"github.com/robertftenbosch/parakeet/errors"
)

// ReadFileTool reads the entire content of a file.
type ReadFileTool struct {
	FSAccess *config.FilesystemAccess
}

func (t *ReadFileTool) Schema() Schema {
	return Schema{
		Name:        "read_file",
		Description: "Reads the entire content of a file.",
		Params: []Param{
			{Name: "path", Type: "string", Description: "Path to the file to read", Required: true},
		},
	}
}

func (t *ReadFileTool) Dangerous() bool { return false }

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path := ArgString(args, "path")

	hidden, err := isPathRestricted(path, t.FSAccess.Hidden)
	if err != nil {
		return "", err
	}
	if hidden {
		return "", errors.NewKind(errors.KindExecution, "access denied: path '%s' is hidden", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "failed to read file '%s'", path)
	}
	return string(content), nil
}

// ListFilesTool lists the entries of a directory.
type ListFilesTool struct {
	FSAccess *config.FilesystemAccess
}

func (t *ListFilesTool) Schema() Schema {
	return Schema{
		Name:        "list_files",
		Description: "Lists the files and directories at a path.",
		Params: []Param{
			{Name: "path", Type: "string", Description: "Directory to list", Required: true},
		},
	}
}

func (t *ListFilesTool) Dangerous() bool { return false }

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path := ArgString(args, "path")

	hidden, err := isPathRestricted(path, t.FSAccess.Hidden)
	if err != nil {
		return "", err
	}
	if hidden {
		return "", errors.NewKind(errors.KindExecution, "access denied: path '%s' is hidden", path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "failed to list directory '%s'", path)
	}

	var b strings.Builder
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(&b, "%s\t%s\n", kind, e.Name())
	}
	return b.String(), nil
}

// EditFileTool replaces text in a file. An empty old string creates the
// file with the new content, including parent directories.
type EditFileTool struct {
	FSAccess *config.FilesystemAccess
}

func (t *EditFileTool) Schema() Schema {
	return Schema{
		Name:        "edit_file",
		Description: "Edits a file by replacing the first occurrence of old_str with new_str. Empty old_str creates the file.",
		Params: []Param{
			{Name: "path", Type: "string", Description: "Path to the file to edit", Required: true},
			{Name: "old_str", Type: "string", Description: "Text to replace; empty creates a new file", Required: true},
			{Name: "new_str", Type: "string", Description: "Replacement text, or full content for a new file", Required: true},
		},
	}
}

func (t *EditFileTool) Dangerous() bool { return false }

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path := ArgString(args, "path")
	oldStr := ArgString(args, "old_str")
	newStr := ArgString(args, "new_str")

	if err := t.checkWritable(path); err != nil {
		return "", err
	}

	if oldStr == "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", errors.WrapKind(err, errors.KindExecution, "failed to create parent directory for '%s'", path)
		}
		if err := os.WriteFile(path, []byte(newStr), 0644); err != nil {
			return "", errors.WrapKind(err, errors.KindExecution, "failed to create file '%s'", path)
		}
		return fmt.Sprintf("created %s (%d bytes)", path, len(newStr)), nil
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "failed to read file '%s'", path)
	}
	if !strings.Contains(string(original), oldStr) {
		return "", errors.NewKind(errors.KindExecution, "old_str not found in '%s'", path)
	}
	edited := strings.Replace(string(original), oldStr, newStr, 1)
	if err := os.WriteFile(path, []byte(edited), 0644); err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "failed to write file '%s'", path)
	}
	return fmt.Sprintf("edited %s", path), nil
}

func (t *EditFileTool) checkWritable(path string) error {
	hidden, err := isPathRestricted(path, t.FSAccess.Hidden)
	if err != nil {
		return err
	}
	if hidden {
		return errors.NewKind(errors.KindExecution, "access denied: path '%s' is hidden", path)
	}
	readOnly, err := isPathRestricted(path, t.FSAccess.ReadOnly)
	if err != nil {
		return err
	}
	if readOnly {
		return errors.NewKind(errors.KindExecution, "access denied: path '%s' is read-only", path)
	}
	return nil
}

// SearchCodeTool greps a directory tree with a regular expression.
type SearchCodeTool struct {
	FSAccess *config.FilesystemAccess
}

func (t *SearchCodeTool) Schema() Schema {
	return Schema{
		Name:        "search_code",
		Description: "Searches files under a directory for a regular expression and returns matching lines.",
		Params: []Param{
			{Name: "pattern", Type: "string", Description: "Regular expression to search for", Required: true},
			{Name: "path", Type: "string", Description: "Directory to search (default: current directory)", Required: false},
			{Name: "file_pattern", Type: "string", Description: "Glob filter on file names, e.g. *.go", Required: false},
		},
	}
}

func (t *SearchCodeTool) Dangerous() bool { return false }

const searchMatchLimit = 200

func (t *SearchCodeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	pattern := ArgString(args, "pattern")
	root := ArgString(args, "path")
	if root == "" {
		root = "."
	}
	filePattern := ArgString(args, "file_pattern")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", errors.NewKind(errors.KindValidation, "invalid search pattern: %v", err)
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if filePattern != "" {
			ok, err := filepath.Match(filePattern, d.Name())
			if err != nil || !ok {
				return nil
			}
		}
		hidden, err := isPathRestricted(path, t.FSAccess.Hidden)
		if err != nil || hidden {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, fmt.Sprintf("%s:%d: %s", path, i+1, strings.TrimSpace(line)))
				if len(matches) >= searchMatchLimit {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", errors.WrapKind(walkErr, errors.KindExecution, "search failed under '%s'", root)
	}

	if len(matches) == 0 {
		return "no matches", nil
	}
	sort.Strings(matches)
	out := strings.Join(matches, "\n")
	if len(matches) >= searchMatchLimit {
		out += fmt.Sprintf("\n(truncated at %d matches)", searchMatchLimit)
	}
	return out, nil
}
