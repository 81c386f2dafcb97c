package player

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wader/gifcat/internal/timing"
)

var (
	indexStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	cachedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// FormatRanges formats sorted indices as compact ranges, [0 1 2 5] is "0-2,5"
func FormatRanges(is []int) string {
	var parts []string
	for i := 0; i < len(is); {
		j := i
		for j+1 < len(is) && is[j+1] == is[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, strconv.Itoa(is[i]))
		} else {
			parts = append(parts, strconv.Itoa(is[i])+"-"+strconv.Itoa(is[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

// FormatBytes formats n in KiB or MiB
func FormatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1fKiB", float64(n)/1024)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func (p *Player) statusLine() string {
	parts := []string{
		indexStyle.Render(fmt.Sprintf("%d/%d", p.driver.CurrentIndex(), p.asset.FrameCount())),
		cachedStyle.Render("cached " + FormatRanges(p.cached)),
		mutedStyle.Render(fmt.Sprintf("window %d/%d", p.cache.CurrentWindowSize(), p.cache.MaxWindowSize())),
		mutedStyle.Render(FormatBytes(p.memUsage)),
		mutedStyle.Render(fmt.Sprintf("requested %d", p.requested)),
		mutedStyle.Render("loops " + p.driver.Loops().String()),
	}
	if lp := p.cache.LastPressure(); !lp.IsZero() {
		parts = append(parts, waitingStyle.Render(fmt.Sprintf("pressure %ds ago", timing.Now().Seconds(lp))))
	}
	if p.waiting {
		parts = append(parts, waitingStyle.Render("waiting"))
	}
	return strings.Join(parts, " ")
}
