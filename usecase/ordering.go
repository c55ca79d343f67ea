package usecase

import (
	"sort"
	"strings"

	"gradient/model"
)

// ProjectLess orders projects by name, ignoring case.
func ProjectLess(a, b model.Project) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.ID < b.ID
}

// TaskLess puts incomplete tasks before completed ones. Within each group
// dated tasks come first, soonest due first, and ties go to the task
// created most recently.
func TaskLess(a, b model.Task) bool {
	if a.IsCompleted() != b.IsCompleted() {
		return !a.IsCompleted()
	}
	switch {
	case a.DueDate != nil && b.DueDate == nil:
		return true
	case a.DueDate == nil && b.DueDate != nil:
		return false
	case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
		return a.DueDate.Before(*b.DueDate)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// NoteLess puts the newest note first.
func NoteLess(a, b model.Note) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

type SearchScope string

const (
	ScopeAll         SearchScope = "all"
	ScopeName        SearchScope = "name"
	ScopeDescription SearchScope = "description"
	ScopeWorkshops   SearchScope = "workshops"
	ScopeMaterials   SearchScope = "materials"
)

func ParseSearchScope(s string) (SearchScope, bool) {
	switch scope := SearchScope(strings.ToLower(strings.TrimSpace(s))); scope {
	case ScopeAll, ScopeName, ScopeDescription, ScopeWorkshops, ScopeMaterials:
		return scope, true
	case "":
		return ScopeAll, true
	}
	return "", false
}

// ProjectMatcher returns a predicate selecting projects whose scoped fields
// contain query, ignoring case. An empty query matches every project.
func ProjectMatcher(scope SearchScope, query string) func(model.Project) bool {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	return func(p model.Project) bool {
		for _, field := range searchFields(p, scope) {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	}
}

func searchFields(p model.Project, scope SearchScope) []string {
	workshops := strings.Join(p.Workshops, " ")
	materials := strings.Join(append(append([]string{}, p.MaterialsNeeded...), p.MaterialsFound...), " ")
	switch scope {
	case ScopeName:
		return []string{p.Name}
	case ScopeDescription:
		return []string{p.Description}
	case ScopeWorkshops:
		return []string{workshops}
	case ScopeMaterials:
		return []string{materials}
	}
	return []string{p.Name, p.Description, workshops, materials}
}

// FilterProjects applies the scoped search to a list of projects.
func FilterProjects(projects []model.Project, scope SearchScope, query string) []model.Project {
	match := ProjectMatcher(scope, query)
	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if match == nil || match(p) {
			out = append(out, p)
		}
	}
	return out
}

func sortSlice[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
