package cmd

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/Iron-Ham/backlog/internal/logging"
)

var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	blueColor    = lipgloss.Color("#60A5FA") // Blue
	cyanColor    = lipgloss.Color("#22D3EE") // Cyan
	matchColor   = lipgloss.Color("#FBBF24") // Yellow
)

// palette holds the styles for one output stream. Colors are dropped when
// the stream is not a terminal or color is turned off.
type palette struct {
	header lipgloss.Style
	muted  lipgloss.Style
	field  lipgloss.Style
	match  lipgloss.Style
	levels map[string]lipgloss.Style
}

func newPalette(w io.Writer, color bool) *palette {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &palette{
		header: r.NewStyle().Bold(true).Foreground(primaryColor),
		muted:  r.NewStyle().Foreground(mutedColor),
		field:  r.NewStyle().Foreground(cyanColor),
		match:  r.NewStyle().Bold(true).Foreground(matchColor),
		levels: map[string]lipgloss.Style{
			logging.LevelDebug: r.NewStyle().Foreground(mutedColor),
			logging.LevelInfo:  r.NewStyle().Foreground(blueColor),
			logging.LevelWarn:  r.NewStyle().Foreground(warningColor),
			logging.LevelError: r.NewStyle().Bold(true).Foreground(errorColor),
		},
	}
}

func (p *palette) level(level string) lipgloss.Style {
	if s, ok := p.levels[strings.ToUpper(level)]; ok {
		return s
	}
	return p.muted
}

// highlight renders text with the inclusive rune ranges in the match
// style. Runs of equal style render together.
func (p *palette) highlight(text string, ranges [][2]int) string {
	if len(ranges) == 0 {
		return text
	}
	runes := []rune(text)
	marked := make([]bool, len(runes))
	for _, rg := range ranges {
		for i := max(rg[0], 0); i <= rg[1] && i < len(runes); i++ {
			marked[i] = true
		}
	}

	var sb strings.Builder
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && marked[i] == marked[start] {
			continue
		}
		chunk := string(runes[start:i])
		if marked[start] {
			sb.WriteString(p.match.Render(chunk))
		} else {
			sb.WriteString(chunk)
		}
		start = i
	}
	return sb.String()
}

// maxTitleWidth bounds the title column of tables.
const maxTitleWidth = 72

// truncateTitle shortens s to maxTitleWidth terminal columns. Escape
// sequences from highlighting are kept intact.
func truncateTitle(s string) string {
	if lipgloss.Width(s) <= maxTitleWidth {
		return s
	}
	return ansi.Truncate(s, maxTitleWidth, "...")
}
