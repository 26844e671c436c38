package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

var quantRe = regexp.MustCompile(`(?i)(Q[2-8]_[A-Z0-9_]+|F16|F32)`)

// LoadDir scans a directory for *.gguf files and builds a registry from
// filenames. ID is the filename without extension; quantization and family
// are inferred from the name when recognizable.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, types.Model{
			ID:     id,
			Name:   id,
			Path:   filepath.Join(abs, name),
			Quant:  strings.ToUpper(quantRe.FindString(name)),
			Family: guessFamily(name),
		})
	}
	return models, nil
}

// Find resolves a model by id.
func Find(models []types.Model, id string) (types.Model, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return types.Model{}, false
}

func guessFamily(name string) string {
	lower := strings.ToLower(name)
	for _, fam := range []string{"llama", "mistral", "phi", "qwen", "gemma"} {
		if strings.Contains(lower, fam) {
			return fam
		}
	}
	return ""
}
