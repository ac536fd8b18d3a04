package chat

import (
	"os"
	"path/filepath"
	"strings"
)

// Instructions returns the first non-empty instructions file found in cwd:
// the configured one, then SLEEK.md, then DESIGN_GUIDE.md.
func Instructions(cwd string, customFile string) (string, error) {
	for _, name := range []string{customFile, "SLEEK.md", "DESIGN_GUIDE.md"} {
		if name == "" {
			continue
		}
		p := name
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, name)
		}
		content, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(content)); text != "" {
			return text, nil
		}
	}
	return "", nil
}
