package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))            // dark green
	success2Style = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))             // green
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))            // blue
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))            // cyan
	debugStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))           // light grey
	streamStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))           // grey
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

const (
	symPass    = "✓"
	symFail    = "✗"
	symWarning = "!"
	symPending = "◉"
	symInfo    = "ℹ"
	symBullet  = "•"
	symHLine   = "━"
)

// Stdout is where the printers and the live display write.
var Stdout io.Writer = os.Stdout

func line(style lipgloss.Style, symbol, format string, a ...any) {
	fmt.Fprintln(Stdout, style.Render(symbol+" "+fmt.Sprintf(format, a...)))
}

func Success(format string, a ...any) { line(success2Style, symPass, format, a...) }
func Error(format string, a ...any)   { line(errorStyle, symFail, format, a...) }
func Warning(format string, a ...any) { line(warningStyle, symWarning, format, a...) }
func Pending(format string, a ...any) { line(pendingStyle, symPending, format, a...) }
func Info(format string, a ...any)    { line(infoStyle, symInfo, format, a...) }

// Header prints a bold title line without a symbol.
func Header(format string, a ...any) {
	fmt.Fprintln(Stdout, headerStyle.Render(fmt.Sprintf(format, a...)))
}

// Detail prints an indented grey key/value line.
func Detail(key string, value any) {
	fmt.Fprintf(Stdout, "  %s %s\n", debugStyle.Render(key+":"), fmt.Sprint(value))
}

func FSuccess(text string) string { return successStyle.Render(text) }
func FError(text string) string   { return errorStyle.Render(text) }
func FWarning(text string) string { return warningStyle.Render(text) }
func FPending(text string) string { return pendingStyle.Render(text) }
func FDebug(text string) string   { return debugStyle.Render(text) }
