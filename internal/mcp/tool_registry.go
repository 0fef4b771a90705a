package mcp

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ToolCategory groups tools for discovery.
type ToolCategory string

const (
	// CategoryCommand tools run a chat command and return its text.
	CategoryCommand ToolCategory = "command"
	// CategoryDocuments tools return structured document data.
	CategoryDocuments ToolCategory = "documents"
	// CategorySearch holds tool_search.
	CategorySearch ToolCategory = "search"
)

// ToolMetadata describes one registered tool.
type ToolMetadata struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	// Destructive tools delete points.
	Destructive bool     `json:"destructive,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// ToolRegistry is the catalog behind tool_search. Tools are kept sorted
// by name.
type ToolRegistry struct {
	mu     sync.RWMutex
	sorted []*ToolMetadata
	byName map[string]*ToolMetadata
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{byName: make(map[string]*ToolMetadata)}
}

// Register adds tool. Names are unique and a description is required.
func (r *ToolRegistry) Register(tool *ToolMetadata) error {
	switch {
	case tool == nil:
		return errors.New("tool metadata is required")
	case tool.Name == "":
		return errors.New("tool name is required")
	case tool.Description == "":
		return fmt.Errorf("tool %s: description is required", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[tool.Name]; dup {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	i := sort.Search(len(r.sorted), func(i int) bool { return r.sorted[i].Name >= tool.Name })
	r.sorted = append(r.sorted, nil)
	copy(r.sorted[i+1:], r.sorted[i:])
	r.sorted[i] = tool
	r.byName[tool.Name] = tool
	return nil
}

func (r *ToolRegistry) Get(name string) (*ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.byName[name]
	return tool, ok
}

// List returns every tool ordered by name.
func (r *ToolRegistry) List() []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*ToolMetadata(nil), r.sorted...)
}

func (r *ToolRegistry) ListByCategory(category ToolCategory) []*ToolMetadata {
	var out []*ToolMetadata
	for _, tool := range r.List() {
		if tool.Category == category {
			out = append(out, tool)
		}
	}
	return out
}

func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sorted)
}

// SearchResult is one tool_search hit. Score is 3 for an exact name, 2
// for a partial name match, 1 for a description or keyword match.
type SearchResult struct {
	Tool        *ToolMetadata `json:"tool"`
	Score       int           `json:"score"`
	MatchReason string        `json:"match_reason"`
}

// toolMatcher matches a query as a case-insensitive substring and, when it
// compiles, as a regular expression.
type toolMatcher struct {
	lower string
	re    *regexp.Regexp
}

func newToolMatcher(query string) toolMatcher {
	m := toolMatcher{lower: strings.ToLower(query)}
	m.re, _ = regexp.Compile("(?i)" + query)
	return m
}

func (m toolMatcher) match(s string) bool {
	return strings.Contains(strings.ToLower(s), m.lower) || (m.re != nil && m.re.MatchString(s))
}

func (m toolMatcher) score(tool *ToolMetadata) (int, string) {
	if strings.ToLower(tool.Name) == m.lower {
		return 3, "exact name match"
	}
	if m.match(tool.Name) {
		return 2, "name matches query"
	}
	if m.match(tool.Description) {
		return 1, "description matches query"
	}
	for _, kw := range tool.Keywords {
		if m.match(kw) {
			return 1, "keyword matches query"
		}
	}
	return 0, ""
}

// Search ranks tools against query, best first. Ties keep name order.
func (r *ToolRegistry) Search(query string) []*SearchResult {
	if query == "" {
		return nil
	}
	m := newToolMatcher(query)
	var results []*SearchResult
	for _, tool := range r.List() {
		if score, reason := m.score(tool); score > 0 {
			results = append(results, &SearchResult{Tool: tool, Score: score, MatchReason: reason})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
