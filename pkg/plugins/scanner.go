package plugins

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ScanOptions controls what the scanner treats as a module or package
type ScanOptions struct {
	ModuleSuffixes []string // File suffixes that mark a module
	PackageMarker  string   // File that marks a directory as a package
	FollowSymlinks bool     // Descend into symlinked package directories
}

// DefaultScanOptions returns the scanner defaults
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		ModuleSuffixes: []string{".go", ".so"},
		PackageMarker:  DefaultPackageMarker,
	}
}

// Scanner enumerates modules and packages below search paths
type Scanner struct {
	opts ScanOptions
	log  *logrus.Logger
}

// NewScanner creates a scanner. Zero-valued options fall back to the defaults.
func NewScanner(opts ScanOptions, log *logrus.Logger) *Scanner {
	defaults := DefaultScanOptions()
	if len(opts.ModuleSuffixes) == 0 {
		opts.ModuleSuffixes = defaults.ModuleSuffixes
	}
	if opts.PackageMarker == "" {
		opts.PackageMarker = defaults.PackageMarker
	}
	if log == nil {
		log = logrus.New()
	}
	return &Scanner{opts: opts, log: log}
}

// Options returns the effective scan options
func (s *Scanner) Options() ScanOptions {
	return s.opts
}

// Scan lists the top-level modules and packages of each path. Names are
// prefix + basename and only names starting with include are yielded. The
// sequence is lazy; the directory is read when iteration reaches it.
func (s *Scanner) Scan(ctx context.Context, paths []string, prefix, include string) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		log := s.log.WithField("scan_id", uuid.NewString())
		seen := make(map[string]struct{})

		for _, root := range paths {
			for d, err := range s.scanDir(ctx, log, root, root, prefix) {
				if err != nil {
					yield(Descriptor{}, err)
					return
				}
				if _, dup := seen[d.Name]; dup {
					log.WithField("module", d.Name).Debugf("Shadowed module at %s", d.Location)
					continue
				}
				seen[d.Name] = struct{}{}
				if !strings.HasPrefix(d.Name, include) {
					continue
				}
				if !yield(d, nil) {
					return
				}
			}
		}
	}
}

// ScanTree is Scan descending into every package. Only leaf modules are
// yielded, with their fully qualified dotted names. Package names are not
// filtered by include so matches below them are still found.
func (s *Scanner) ScanTree(ctx context.Context, paths []string, prefix, include string) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		log := s.log.WithField("scan_id", uuid.NewString())
		seen := make(map[string]struct{})
		visited := make(map[string]struct{})

		var walk func(root, dir, prefix string) bool
		walk = func(root, dir, prefix string) bool {
			if real, err := filepath.EvalSymlinks(dir); err == nil {
				if _, loop := visited[real]; loop {
					log.WithField("path", dir).Warn("Skipping package directory already visited (symlink cycle)")
					return true
				}
				visited[real] = struct{}{}
			}

			for d, err := range s.scanDir(ctx, log, root, dir, prefix) {
				if err != nil {
					yield(Descriptor{}, err)
					return false
				}
				if _, dup := seen[d.Name]; dup {
					continue
				}
				seen[d.Name] = struct{}{}

				if d.IsPackage {
					if !walk(root, d.Location, d.Name+".") {
						return false
					}
					continue
				}
				if !strings.HasPrefix(d.Name, include) {
					continue
				}
				if !yield(d, nil) {
					return false
				}
			}
			return true
		}

		for _, root := range paths {
			if !walk(root, root, prefix) {
				return
			}
		}
	}
}

// scanDir yields the direct children of dir that are modules or packages
func (s *Scanner) scanDir(ctx context.Context, log *logrus.Entry, root, dir, prefix string) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				log.WithField("path", dir).Debug("Search path does not exist")
			} else {
				log.WithField("path", dir).Warnf("Failed to read search path: %v", err)
			}
			return
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				yield(Descriptor{}, err)
				return
			}

			d, ok := s.describe(dir, entry)
			if !ok {
				continue
			}
			d.Name = prefix + d.Name
			d.Root = root
			if !yield(d, nil) {
				return
			}
		}
	}
}

// describe classifies a directory entry
func (s *Scanner) describe(dir string, entry os.DirEntry) (Descriptor, bool) {
	name := entry.Name()
	if strings.HasPrefix(name, ".") {
		return Descriptor{}, false
	}
	location := filepath.Join(dir, name)

	isDir := entry.IsDir()
	isFile := entry.Type().IsRegular()
	if entry.Type()&os.ModeSymlink != 0 {
		info, err := os.Stat(location)
		if err != nil {
			return Descriptor{}, false
		}
		isDir = info.IsDir() && s.opts.FollowSymlinks
		isFile = info.Mode().IsRegular()
	}

	switch {
	case isDir:
		if !identifierRegex.MatchString(name) {
			return Descriptor{}, false
		}
		marker, err := os.Stat(filepath.Join(location, s.opts.PackageMarker))
		if err != nil || marker.IsDir() {
			return Descriptor{}, false
		}
		return Descriptor{Name: name, IsPackage: true, Location: location}, true

	case isFile:
		if name == s.opts.PackageMarker || strings.HasSuffix(name, "_test.go") {
			return Descriptor{}, false
		}
		idx := slices.IndexFunc(s.opts.ModuleSuffixes, func(suffix string) bool {
			return strings.HasSuffix(name, suffix)
		})
		if idx < 0 {
			return Descriptor{}, false
		}
		base := strings.TrimSuffix(name, s.opts.ModuleSuffixes[idx])
		if !identifierRegex.MatchString(base) {
			return Descriptor{}, false
		}
		return Descriptor{Name: base, Location: location}, true
	}

	return Descriptor{}, false
}
