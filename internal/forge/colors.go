package forge

import "github.com/gookit/color"

// Color helpers shared inside this package (orchestrator, hook runner,
// fetcher, sync and log viewer); cmd/forgepkg prints with plain fmt.
// Kept as package-level tagged styles: name a handful of semantic
// colors once instead of re-specifying ANSI codes at every call site.
var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colErr     = color.Error
	colArrow   = color.HEX("#FFEB3B")
	colSuccess = color.HEX("#1976D2")
)

func infof(format string, args ...any) {
	colArrow.Print("-> ")
	colInfo.Printf(format+"\n", args...)
}

func warnf(format string, args ...any) {
	colArrow.Print("-> ")
	colWarn.Printf(format+"\n", args...)
}

func errf(format string, args ...any) {
	colArrow.Print("-> ")
	colErr.Printf(format+"\n", args...)
}
