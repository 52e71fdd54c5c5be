package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/testdata"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

// watch re-runs rerun whenever a test-data file below args changes, until
// ctx is done.
func watch(ctx context.Context, cmd *cobra.Command, args []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchDirs(args) {
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
	)
	defer func() {
		mu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !testdata.IsTestDataFile(event.Name) {
				continue
			}

			name := event.Name
			mu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "\n\nFile changed: %s\nRe-running tests...\n\n", name)
				rerun()
				fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

// watchDirs returns every directory to watch for args: each directory
// argument with its subdirectories, and the parent of each file argument.
func watchDirs(args []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(filepath.Dir(arg))
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				add(path)
			}
			return nil
		})
	}
	return dirs
}
