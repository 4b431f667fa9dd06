// Package skills holds the catalog of skill names the portal recognizes.
// The synthesis prompt offers the catalog to the model, and declared skills
// are normalized against it before form filling.
package skills

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// defaultCatalog is the portal's current skill list.
var defaultCatalog = []string{
	"AWS", "Azure", "C++", "Canva", "Cloud access control", "CSS",
	"Data encryption", "Data modeling", "Data visualization", "Database design",
	"DevOps", "Digital Design", "Docker", "Figma", "Git", "Godot",
	"Google Cloud", "HTML", "IaaS", "Indexing", "JavaScript",
	"Machine learning", "MySQL", "Network architecture", "Node.js", "NoSQL",
	"Physical Design", "PostgreSQL", "Python", "PyTorch", "React", "React.js",
	"SaaS", "scikit-learn", "SEO", "SQL", "Statistical analysis", "Swift",
	"Tableau", "TCP/IP", "TensorFlow", "TypeScript", "UI/UX",
}

// Catalog serves skill names, optionally reloading from a JSON file when
// the cached copy goes stale.
type Catalog struct {
	path string
	ttl  time.Duration

	mu        sync.RWMutex
	names     []string
	fetchedAt time.Time
}

// NewCatalog returns a catalog backed by a JSON file (an array of strings).
// An empty path means the built-in list only.
func NewCatalog(path string, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Catalog{path: path, ttl: ttl}
}

// Names returns the current skill list, refreshing from disk when the
// cached copy is older than the TTL. Falls back to the built-in list when
// the file is absent or unreadable.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	if c.names != nil && time.Since(c.fetchedAt) <= c.ttl {
		out := make([]string, len(c.names))
		copy(out, c.names)
		c.mu.RUnlock()
		return out
	}
	c.mu.RUnlock()

	names := c.load()

	c.mu.Lock()
	c.names = names
	c.fetchedAt = time.Now()
	out := make([]string, len(names))
	copy(out, names)
	c.mu.Unlock()
	return out
}

func (c *Catalog) load() []string {
	if c.path == "" {
		return defaultCatalog
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return defaultCatalog
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil || len(names) == 0 {
		return defaultCatalog
	}
	return names
}

// Normalize maps model-declared skills onto catalog names, matching
// case-insensitively. Skills with no catalog match are kept as-is so the
// reviewer sees what the model actually claimed.
func (c *Catalog) Normalize(declared []string) []string {
	names := c.Names()
	byLower := make(map[string]string, len(names))
	for _, n := range names {
		byLower[strings.ToLower(n)] = n
	}

	out := make([]string, 0, len(declared))
	for _, d := range declared {
		if canonical, ok := byLower[strings.ToLower(strings.TrimSpace(d))]; ok {
			out = append(out, canonical)
		} else {
			out = append(out, d)
		}
	}
	return out
}

// FormatForPrompt renders the catalog as a bulleted list for the system
// prompt.
func (c *Catalog) FormatForPrompt() string {
	var b strings.Builder
	for _, n := range c.Names() {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return b.String()
}
