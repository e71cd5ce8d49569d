package skills

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	registry "github.com/adalundhe/parley/core/skills"
)

// SkippedManifest records a directory that could not be loaded.
type SkippedManifest struct {
	Dir string
	Err error
}

// Discover reads every <dir>/<id>/SKILL.md. Invalid manifests are reported
// in skipped rather than failing the whole scan.
func Discover(dir string) (manifests []Manifest, skipped []SkippedManifest, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read skills dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillDir := filepath.Join(dir, entry.Name())
		m, err := ReadManifest(skillDir)
		if err == nil {
			err = Validate(m)
		}
		if err != nil {
			skipped = append(skipped, SkippedManifest{Dir: skillDir, Err: err})
			continue
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].ID < manifests[j].ID })
	return manifests, skipped, nil
}

// ReadManifest parses the SKILL.md in skillDir. The id defaults to the
// directory name.
func ReadManifest(skillDir string) (Manifest, error) {
	skillMD, err := findSkillMD(skillDir)
	if err != nil {
		return Manifest{}, err
	}
	content, err := os.ReadFile(skillMD)
	if err != nil {
		return Manifest{}, fmt.Errorf("read SKILL.md: %w", err)
	}

	m, err := ParseManifest(string(content))
	if err != nil {
		return Manifest{}, err
	}
	if m.ID == "" {
		m.ID = filepath.Base(skillDir)
	}
	m.Path = skillMD
	return m, nil
}

// ParseManifest decodes frontmatter and keeps the markdown body as
// instructions.
func ParseManifest(content string) (Manifest, error) {
	front, body, err := ParseFrontmatter(content)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal([]byte(front), &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	m.Instructions = body
	return m, nil
}

func findSkillMD(skillDir string) (string, error) {
	for _, name := range []string{"SKILL.md", "skill.md"} {
		path := filepath.Join(skillDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrSkillNotFound
}

// ParseFrontmatter splits "---\n<yaml>\n---\n<body>".
func ParseFrontmatter(content string) (front string, body string, err error) {
	if !strings.HasPrefix(content, "---") {
		return "", "", ErrParseFailed
	}
	parts := strings.SplitN(content[3:], "\n---", 2)
	if len(parts) < 2 {
		return "", "", ErrParseFailed
	}
	return parts[0], strings.TrimSpace(strings.TrimPrefix(parts[1], "-")), nil
}

// RegisterDir discovers manifests under dir and registers them, logging
// anything skipped. A missing directory registers nothing.
func RegisterDir(reg *registry.Registry, dir string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	manifests, skipped, err := Discover(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for _, s := range skipped {
		logger.Warn("skipping skill manifest", "dir", s.Dir, "error", s.Err)
	}
	n := 0
	for _, m := range manifests {
		if reg.Register(m.Config()) {
			n++
		}
	}
	logger.Debug("skill manifests registered", "dir", dir, "count", n)
	return n, nil
}
