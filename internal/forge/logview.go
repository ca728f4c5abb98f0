package forge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// LogTargets returns the package log filenames under LOGDIR matching
// the optional name[@version] filter, newest first.
func LogTargets(cfg *Config, filter string) ([]string, error) {
	entries, err := os.ReadDir(cfg.LogDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read logdir %s: %w", cfg.LogDir, err)
	}

	var logs []string
	modTimes := make(map[string]time.Time)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		if filter != "" && !strings.HasPrefix(e.Name(), strings.Replace(filter, "@", "-", 1)) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		modTimes[e.Name()] = info.ModTime()
		logs = append(logs, e.Name())
	}
	sort.SliceStable(logs, func(i, j int) bool { return modTimes[logs[i]].After(modTimes[logs[j]]) })
	return logs, nil
}

// RunLogViewer opens a terminal UI tailing the newest matching build
// log, refreshing its content on an interval. Only that one log is
// shown; the viewer has no key for switching to another log. It is
// presentation only: it reads the same files the build driver writes
// and has no pipeline side effects.
func RunLogViewer(cfg *Config, filter string) error {
	logs, err := LogTargets(cfg, filter)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		warnf("no build logs found under %s", cfg.LogDir)
		return nil
	}
	path := filepath.Join(cfg.LogDir, logs[0])

	app := tview.NewApplication()

	view := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetScrollable(true).
		SetChangedFunc(func() { app.Draw() })
	view.SetBorder(true)
	view.SetTitle(fmt.Sprintf(" %s ", logs[0]))

	footer := tview.NewTextView().SetText("q/Esc: quit")
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(view, 0, 1, false).
		AddItem(footer, 1, 0, false)

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				data, err := os.ReadFile(path)
				if err == nil {
					app.QueueUpdateDraw(func() {
						view.SetText(string(data))
						view.ScrollToEnd()
					})
				}
			}
		}
	}()

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyEscape {
			close(stop)
			app.Stop()
			return nil
		}
		return event
	})

	return app.SetRoot(flex, true).Run()
}
