package manifest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/stackwise-dev/stackwise/internal/messages"
)

// System abstracts the filesystem operations the store needs. Kept
// package-local so unit tests can run in parallel against fakes.
type System interface {
	ReadFile(name string) ([]byte, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
}

// Load reads every *.toml manifest under dir and returns the validated set.
// It fails with *Error when a source is malformed, a required field is
// missing, or a declared dependency resolves to no loaded manifest.
func Load(sys System, dir string) (Set, error) {
	if sys == nil {
		return nil, fmt.Errorf(messages.ManifestSystemRequired)
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf(messages.ManifestDirRequired)
	}

	paths, err := manifestFiles(sys, dir)
	if err != nil {
		return nil, fmt.Errorf(messages.ManifestFailedReadDirFmt, dir, err)
	}
	if len(paths) == 0 {
		return nil, newError("", messages.ManifestNoneLoadedFmt, dir)
	}

	set := make(Set, len(paths))
	for _, path := range paths {
		m, err := loadOne(sys, path)
		if err != nil {
			return nil, err
		}
		if prior, ok := set[m.ID]; ok {
			return nil, newError(path, messages.ManifestDuplicateIDFmt, m.ID, prior.source, path)
		}
		set[m.ID] = m
	}

	// Deferred detection: unresolved dependency ids are a store-level error.
	for _, m := range set {
		for _, dep := range m.Dependencies {
			if dep == m.ID {
				return nil, newError(m.source, messages.ManifestSelfDependencyFmt, m.ID)
			}
			if _, ok := set[dep]; !ok {
				return nil, newError(m.source, messages.ManifestUnresolvedDepFmt, m.ID, dep)
			}
		}
	}
	return set, nil
}

func manifestFiles(sys System, dir string) ([]string, error) {
	var paths []string
	err := sys.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".toml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func loadOne(sys System, path string) (*Manifest, error) {
	data, err := sys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(messages.ManifestFailedReadFileFmt, path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf(messages.ManifestDecodeFailedFmt, path, err)
	}
	m.source = path
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validate(m *Manifest) error {
	if strings.TrimSpace(m.ID) == "" {
		return newError(m.source, messages.ManifestMissingID)
	}
	if strings.TrimSpace(m.Version) == "" {
		return newError(m.source, messages.ManifestMissingVersionFmt, m.ID)
	}
	if len(m.Targets) == 0 {
		return newError(m.source, messages.ManifestNoTargetsFmt, m.ID)
	}
	for _, t := range m.Targets {
		if !knownTarget(t) {
			return newError(m.source, messages.ManifestUnknownTargetFmt, m.ID, string(t))
		}
	}
	for i, f := range m.Files {
		if strings.TrimSpace(f.Source) == "" || strings.TrimSpace(f.Destination) == "" {
			return newError(m.source, messages.ManifestEmptyFileEntryFmt, m.ID, i)
		}
		if filepath.IsAbs(f.Destination) {
			return newError(m.source, messages.ManifestAbsDestFmt, m.ID, i)
		}
	}
	if m.Module != nil {
		if strings.TrimSpace(m.Module.Name) == "" ||
			strings.TrimSpace(m.Module.Path) == "" ||
			strings.TrimSpace(m.Module.SHA256) == "" {
			return newError(m.source, messages.ManifestModuleIncomplete, m.ID)
		}
	}
	return nil
}
