package testdata

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDir is where test data files are looked up by name.
const DefaultDir = "test-data"

type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	if dir == "" {
		dir = DefaultDir
	}
	return &Loader{dir: dir}
}

func (l *Loader) Dir() string {
	return l.dir
}

// Load reads name from the loader's directory. Absolute names are read as is.
func (l *Loader) Load(name string) (*Suite, error) {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(l.dir, name)
	}
	return LoadFile(path)
}

// LoadCases returns only the test cases of name.
func (l *Loader) LoadCases(name string) ([]TestCase, error) {
	suite, err := l.Load(name)
	if err != nil {
		return nil, err
	}
	return suite.TestCases, nil
}

// LoadFile reads and decodes one suite file. JSON files decode through the
// same YAML decoder.
func LoadFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test data: %w", err)
	}

	suite, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	suite.Path = path
	return suite, nil
}

// Parse decodes a suite document.
func Parse(data []byte) (*Suite, error) {
	var suite Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

// IsTestDataFile reports whether path has a suite file extension.
func IsTestDataFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Discover expands files and directories into a sorted list of suite files.
// Explicit files are kept regardless of extension.
func Discover(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			add(arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsTestDataFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}
