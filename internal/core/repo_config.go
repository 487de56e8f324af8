package core

import (
	"path"
	"slices"
	"strings"
)

// RepoConfig represents the structure of the .rev-ai.yml file.
type RepoConfig struct {
	// Custom instructions appended to the reviewer prompt.
	CustomInstructions []string `yaml:"custom_instructions"`

	// Directories excluded from review by name.
	// Example: ["dist", "vendor", "docs"]
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Extensions excluded from review. The leading dot is optional.
	// Example: [".md", "lock", ".log"]
	ExcludeExts []string `yaml:"exclude_exts"`

	// Files larger than this are not sent to a reviewer. Zero disables the limit.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// DefaultRepoConfig returns a config with default values.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		CustomInstructions: []string{},
		ExcludeDirs:        []string{"vendor", "node_modules", ".git"},
		ExcludeExts:        []string{".lock", ".sum", ".png", ".jpg", ".svg"},
		MaxFileBytes:       256 * 1024,
	}
}

// Excluded reports whether filePath (slash separated, relative to the
// repository root) falls under an excluded directory or extension.
func (c *RepoConfig) Excluded(filePath string) bool {
	segments := strings.Split(path.Dir(filePath), "/")
	for _, dir := range c.ExcludeDirs {
		dir = strings.Trim(dir, "/")
		if dir == "" {
			continue
		}
		if strings.HasPrefix(filePath, dir+"/") || slices.Contains(segments, dir) {
			return true
		}
	}

	ext := strings.ToLower(path.Ext(filePath))
	for _, e := range c.ExcludeExts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}
