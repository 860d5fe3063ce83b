package plugins

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// Greeter is the capability used across the tests
type Greeter interface {
	Greet(name string) string
}

// LoudGreeter refines Greeter
type LoudGreeter interface {
	Greeter
	Shout() string
}

type englishGreeter struct {
	greeted int
}

func (g *englishGreeter) Greet(name string) string {
	g.greeted++
	return "Hello, " + name
}

type frenchGreeter struct{}

func (g *frenchGreeter) Greet(name string) string { return "Bonjour, " + name }

type unrelated struct{}

func (u *unrelated) Close() error { return nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// buildFixtureTree creates the test plugin tree and returns the path of its
// root directory (named "root"):
//
//	root/
//		module.go
//		module_class.go
//		base/plugin.yaml
//		nested1/plugin.yaml
//		nested1/module1.go
//		nested1/nested2/plugin.yaml
//		nested1/nested2/module2.go
//
// plus files and directories the scanner must ignore.
func buildFixtureTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "root")

	writeFile(t, filepath.Join(root, "module.go"), "package root\n")
	writeFile(t, filepath.Join(root, "module_class.go"), "package root\n")
	writeFile(t, filepath.Join(root, "base", DefaultPackageMarker), "")
	writeFile(t, filepath.Join(root, "nested1", DefaultPackageMarker), "")
	writeFile(t, filepath.Join(root, "nested1", "module1.go"), "package nested1\n")
	writeFile(t, filepath.Join(root, "nested1", "nested2", DefaultPackageMarker), "")
	writeFile(t, filepath.Join(root, "nested1", "nested2", "module2.go"), "package nested2\n")

	// Ignored entries
	writeFile(t, filepath.Join(root, "module_test.go"), "package root\n")
	writeFile(t, filepath.Join(root, ".hidden.go"), "package root\n")
	writeFile(t, filepath.Join(root, "README.md"), "# fixtures\n")
	writeFile(t, filepath.Join(root, "not-an-identifier.go"), "package root\n")
	writeFile(t, filepath.Join(root, "plain_dir", "other.go"), "package plain\n")

	return root
}

func descriptorNames(ds []Descriptor) []string {
	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, d.Name)
	}
	return names
}
