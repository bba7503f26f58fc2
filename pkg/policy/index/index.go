package index

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Rule is one evaluable policy module.
type Rule struct {
	// ID is the path relative to the root, slash separated, without the
	// extension, e.g. "eu_ai_act/fairness/bias_check".
	ID string

	// Path is the file path on disk.
	Path string

	// Package is the Rego package declared by the file, e.g.
	// "eu_ai_act.fairness.bias_check". Empty if the file has no package line.
	Package string

	// Category is the first directory of ID.
	Category string

	// Subcategory is the directory path between Category and the file.
	// Empty for rules placed directly in the category directory.
	Subcategory string
}

// Index is an immutable view of a policy repository.
type Index struct {
	root      string
	rules     []*Rule
	libraries []string
	dirs      map[string]bool
}

// Options configures Build.
type Options struct {
	// LibraryDirs are top-level directories holding shared modules.
	LibraryDirs []string

	// Extension is the rule file extension. Default ".rego".
	Extension string
}

// Build indexes the repository at root.
func Build(root string, libraryDirs []string) (*Index, error) {
	return BuildWithOptions(root, Options{LibraryDirs: libraryDirs})
}

// BuildWithOptions indexes the repository at root.
func BuildWithOptions(root string, opts Options) (*Index, error) {
	ext := opts.Extension
	if ext == "" {
		ext = ".rego"
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &LoadError{Path: root, Message: "policy root not accessible", Cause: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Path: root, Message: "not a directory"}
	}

	libs := make(map[string]bool, len(opts.LibraryDirs))
	for _, d := range opts.LibraryDirs {
		libs[d] = true
	}

	idx := &Index{root: root, dirs: make(map[string]bool)}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			idx.dirs[rel] = true
			return nil
		}
		if filepath.Ext(d.Name()) != ext || strings.HasSuffix(d.Name(), "_test"+ext) {
			return nil
		}

		top := strings.SplitN(rel, "/", 2)[0]
		if libs[top] {
			idx.libraries = append(idx.libraries, p)
			return nil
		}
		if !strings.Contains(rel, "/") {
			// Files at the root belong to no category.
			return nil
		}

		rule, err := newRule(p, rel, ext)
		if err != nil {
			return err
		}
		idx.rules = append(idx.rules, rule)
		return nil
	})
	if err != nil {
		return nil, &LoadError{Path: root, Message: "failed to walk policy directory", Cause: err}
	}

	sort.Slice(idx.rules, func(i, j int) bool { return idx.rules[i].ID < idx.rules[j].ID })
	sort.Strings(idx.libraries)
	return idx, nil
}

func newRule(p, rel, ext string) (*Rule, error) {
	id := strings.TrimSuffix(rel, ext)
	parts := strings.Split(id, "/")

	pkg, err := readPackage(p)
	if err != nil {
		return nil, err
	}

	return &Rule{
		ID:          id,
		Path:        p,
		Package:     pkg,
		Category:    parts[0],
		Subcategory: strings.Join(parts[1:len(parts)-1], "/"),
	}, nil
}

// maxLineSize bounds the lines read while looking for the package line.
const maxLineSize = 1 << 20

// readPackage returns the name declared by the first "package" line. A
// line longer than maxLineSize ends the search with no package, leaving
// the rule to fail on its own when evaluated.
func readPackage(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if name, ok := strings.CutPrefix(line, "package "); ok {
			return strings.TrimSpace(name), nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, bufio.ErrTooLong) {
		return "", err
	}
	return "", nil
}

// SplitCategory splits "category/subcategory" on the first "/". Surrounding
// slashes and whitespace are ignored.
func SplitCategory(s string) (category, subcategory string) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	category, subcategory, _ = strings.Cut(s, "/")
	return category, subcategory
}

// Root returns the repository root.
func (idx *Index) Root() string { return idx.root }

// Rules returns every rule, sorted by ID.
func (idx *Index) Rules() []*Rule {
	return append([]*Rule(nil), idx.rules...)
}

// Libraries returns the shared module paths, sorted.
func (idx *Index) Libraries() []string {
	return append([]string(nil), idx.libraries...)
}

// Categories returns the distinct categories that contain rules, sorted.
func (idx *Index) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range idx.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// Resolve returns the rules of category, restricted to subcategory (and
// its nested directories) when it is not empty. The result may be empty.
func (idx *Index) Resolve(category, subcategory string) []*Rule {
	subcategory = strings.Trim(subcategory, "/")
	var out []*Rule
	for _, r := range idx.rules {
		if r.Category != category {
			continue
		}
		if subcategory != "" && r.Subcategory != subcategory && !strings.HasPrefix(r.Subcategory, subcategory+"/") {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ResolveFolder returns the rules under every directory whose relative path
// or base name equals name. It returns a *FolderNotFoundError when no
// directory matches; a matching directory without rules yields an empty
// result.
func (idx *Index) ResolveFolder(name string) ([]*Rule, error) {
	name = strings.Trim(filepath.ToSlash(strings.TrimSpace(name)), "/")
	if name == "" {
		return nil, &FolderNotFoundError{Folder: name}
	}

	var matches []string
	for dir := range idx.dirs {
		if dir == name || path.Base(dir) == name {
			matches = append(matches, dir)
		}
	}
	if len(matches) == 0 {
		return nil, &FolderNotFoundError{Folder: name}
	}

	var out []*Rule
	for _, r := range idx.rules {
		for _, dir := range matches {
			if strings.HasPrefix(r.ID, dir+"/") {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}
