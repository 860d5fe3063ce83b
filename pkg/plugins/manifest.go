package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultPackageMarker is the file that turns a directory into a package
const DefaultPackageMarker = "plugin.yaml"

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// Manifest is the package marker file. Every field is optional: an empty
// marker still makes its directory a package.
type Manifest struct {
	Name        string                       `yaml:"name,omitempty"`         // Package name, defaults to the directory name
	Version     string                       `yaml:"version,omitempty"`      // Semver
	Description string                       `yaml:"description,omitempty"`  // Short description
	Author      string                       `yaml:"author,omitempty"`       // Author name
	License     string                       `yaml:"license,omitempty"`      // License (e.g., MIT, Apache-2.0)
	Homepage    string                       `yaml:"homepage,omitempty"`     // Homepage URL
	EntryPoints map[string]map[string]string `yaml:"entry_points,omitempty"` // group -> name -> target
	Metadata    map[string]string            `yaml:"metadata,omitempty"`     // Additional metadata
}

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadManifest loads and parses a package manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	return &manifest, nil
}

// LoadManifestFromDir loads the package marker of a directory. An empty
// marker name selects DefaultPackageMarker.
func LoadManifestFromDir(dir, marker string) (*Manifest, error) {
	if marker == "" {
		marker = DefaultPackageMarker
	}
	manifest, err := LoadManifest(filepath.Join(dir, marker))
	if err != nil {
		return nil, err
	}
	if manifest.Name == "" {
		manifest.Name = filepath.Base(dir)
	}
	return manifest, nil
}

// ValidateManifest checks version formats and entry point declarations
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errs []ValidationError

	if manifest.Version != "" && !isValidSemver(manifest.Version) {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("Invalid semver format: %s", manifest.Version),
		})
	}

	groups := make([]string, 0, len(manifest.EntryPoints))
	for group := range manifest.EntryPoints {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	for _, group := range groups {
		if group == "" {
			errs = append(errs, ValidationError{
				Field:   "entry_points",
				Message: "Entry point group name is required",
			})
			continue
		}
		entries := manifest.EntryPoints[group]
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ep := EntryPoint{Group: group, Name: name, Target: entries[name]}
			if err := ep.Validate(); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("entry_points.%s.%s", group, name),
					Message: err.Error(),
				})
			}
		}
	}

	return errs
}

// FindManifests returns the package markers directly below each search path,
// including a marker in the search path itself. Missing paths are skipped.
func FindManifests(paths []string, marker string) ([]string, error) {
	if marker == "" {
		marker = DefaultPackageMarker
	}

	var found []string
	for _, root := range paths {
		candidates := []string{filepath.Join(root, marker)}

		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read search path %s: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				candidates = append(candidates, filepath.Join(root, entry.Name(), marker))
			}
		}

		for _, candidate := range candidates {
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				found = append(found, candidate)
			}
		}
	}

	return found, nil
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}
