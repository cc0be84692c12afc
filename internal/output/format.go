package output

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// Speed formats bytes transferred over elapsed as a rate.
func Speed(bytes int64, elapsed time.Duration) string {
	if elapsed <= 0 || bytes <= 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed.Seconds()
	return humanize.Bytes(uint64(bps)) + "/s"
}

// Bytes is humanize.Bytes for signed counters.
func Bytes(n int64) string {
	return humanize.Bytes(uint64(max(n, 0)))
}

// ProgressBar renders current/total as a fixed-width bar. An unknown total
// (0) renders only the byte count.
func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		return debugStyle.Render(fmt.Sprintf("%s %s downloaded", symBullet, Bytes(current)))
	}
	current = min(max(current, 0), total)
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := symBullet + strings.Repeat(symHLine, filled) + strings.Repeat(" ", width-filled) + symBullet
	return debugStyle.Render(fmt.Sprintf("%s %.1f%% %s %s/%s", bar, percent*100, symBullet, Bytes(current), Bytes(total)))
}

func isTerminal() bool {
	f, ok := Stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalSize() (width, height int) {
	width, height = 80, 24
	f, ok := Stdout.(*os.File)
	if !ok {
		return width, height
	}
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return width, height
	}
	if w > 0 {
		width = w
	}
	if h > 0 {
		height = h
	}
	return width, height
}

func wrapText(text string, indent int) []string {
	termWidth, _ := terminalSize()
	maxWidth := termWidth - indent - 2
	if maxWidth <= 10 {
		maxWidth = 80
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	width := 0
	for _, r := range text {
		if width+1 > maxWidth {
			lines = append(lines, current.String())
			current.Reset()
			width = 0
		}
		current.WriteRune(r)
		width++
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
