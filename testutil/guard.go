// Package testutil provides testing helpers that enforce package boundaries:
// which layers may import which across the repository.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// ModulePath is the import path prefix of this module.
const ModulePath = "jobsdashboard"

// AssertNoDirectImports scans the non-test .go files in dir and fails if any
// import path satisfies forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, reason, viols)
}

// AssertImportBoundary walks every package under the module root and fails
// when a package outside allowed imports a path satisfying forbidden. Test
// files are included so fakes cannot bypass the boundary.
func AssertImportBoundary(t testing.TB, forbidden func(importPath string) bool, reason string, allowed ...string) {
	t.Helper()
	root, err := ModuleRoot()
	if err != nil {
		t.Fatalf("module root: %v", err)
	}
	viols, err := boundaryViolations(root, forbidden, allowed)
	if err != nil {
		t.Fatalf("scan module: %v", err)
	}
	failIfViolations(t, reason, viols)
}

// PrefixForbidden matches prefix itself and every package beneath it.
func PrefixForbidden(prefix string) func(string) bool {
	return func(path string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

// DomainImportForbidden matches any import path that points to the domain package.
func DomainImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// ModuleRoot returns the nearest ancestor of the working directory holding go.mod.
func ModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		imports, err := fileImports(fset, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, ip := range imports {
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

func boundaryViolations(root string, forbidden func(string) bool, allowed []string) ([]string, error) {
	fset := token.NewFileSet()
	var viols []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		pkg := ModulePath
		if rel != "." {
			pkg += "/" + filepath.ToSlash(rel)
		}
		if forbidden(pkg) || inAllowed(pkg, allowed) {
			return nil
		}
		imports, err := fileImports(fset, path)
		if err != nil {
			return err
		}
		for _, ip := range imports {
			if forbidden(ip) {
				viols = append(viols, fmt.Sprintf("%s imports %s (in %s)", pkg, ip, name))
			}
		}
		return nil
	})
	sort.Strings(viols)
	return viols, err
}

func inAllowed(pkg string, allowed []string) bool {
	for _, a := range allowed {
		if PrefixForbidden(a)(pkg) {
			return true
		}
	}
	return false
}

func fileImports(fset *token.FileSet, path string) ([]string, error) {
	f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(f.Imports))
	for _, imp := range f.Imports {
		out = append(out, strings.Trim(imp.Path.Value, "\""))
	}
	return out, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
