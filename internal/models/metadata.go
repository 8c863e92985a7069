package models

// Metadata is the open, platform-specific key-value map attached to a
// snapshot. Access goes through typed getters: an absent or malformed
// value reads as the zero value and never raises a risk signal.
type Metadata map[string]interface{}

func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func (m Metadata) Int(key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		// JSON round-trips numbers as float64.
		return int(v)
	default:
		return 0
	}
}

func (m Metadata) Bool(key string) bool {
	if m == nil {
		return false
	}
	if b, ok := m[key].(bool); ok {
		return b
	}
	return false
}

// Has reports whether the key holds a non-empty string value.
func (m Metadata) Has(key string) bool {
	return m.String(key) != ""
}

// Repository is the normalized shape of one code repository entry in
// code-hosting metadata.
type Repository struct {
	Name           string
	Language       string
	Description    string
	CommitPatterns bool
}

// Repositories decodes the "repositories" metadata entry. Entries that
// are not maps are skipped; a missing key yields nil.
func (m Metadata) Repositories() []Repository {
	if m == nil {
		return nil
	}
	raw, ok := m["repositories"].([]interface{})
	if !ok {
		return nil
	}
	repos := make([]Repository, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		repo := Repository{}
		if name, ok := fields["name"].(string); ok {
			repo.Name = name
		}
		if lang, ok := fields["language"].(string); ok {
			repo.Language = lang
		}
		if desc, ok := fields["description"].(string); ok {
			repo.Description = desc
		}
		// commit_patterns is either a timing histogram map or a plain
		// presence flag.
		switch cp := fields["commit_patterns"].(type) {
		case bool:
			repo.CommitPatterns = cp
		case map[string]interface{}:
			repo.CommitPatterns = len(cp) > 0
		}
		repos = append(repos, repo)
	}
	return repos
}

// DistinctLanguages counts the distinct non-empty languages across the
// snapshot's repositories.
func (m Metadata) DistinctLanguages() int {
	seen := make(map[string]struct{})
	for _, repo := range m.Repositories() {
		if repo.Language != "" {
			seen[repo.Language] = struct{}{}
		}
	}
	return len(seen)
}

// HasCommitPatterns reports whether any repository exposes commit time
// patterns.
func (m Metadata) HasCommitPatterns() bool {
	for _, repo := range m.Repositories() {
		if repo.CommitPatterns {
			return true
		}
	}
	return false
}
