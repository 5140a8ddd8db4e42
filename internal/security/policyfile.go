package security

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk shape of the security policy configuration.
type policyFile struct {
	// Default applies to tools without an explicit entry.
	Default *Policy `yaml:"default"`
	// Tools maps tool names to their policies.
	Tools map[string]Policy `yaml:"tools"`
}

// LoadPolicyFile parses a YAML policy file. A missing file is not an error:
// it yields an empty table so built-in defaults apply.
func LoadPolicyFile(path string) (map[string]Policy, *Policy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return pf.Tools, pf.Default, nil
}

// WatchPolicyFile reloads the manager's policy table whenever the file
// changes. It returns a stop function. Reload failures keep the previous
// table and are reported through onError, which may be nil.
func WatchPolicyFile(m *Manager, path string, onError func(error)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create policy watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops the
	// watch on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	report := onError
	if report == nil {
		report = func(error) {}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				tools, def, err := LoadPolicyFile(path)
				if err != nil {
					report(err)
					continue
				}
				m.SetPolicies(tools, def)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				report(err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
