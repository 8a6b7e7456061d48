package cli

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

// brand colors
var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorDimCyan = lipgloss.Color("#00AFAF")
	colorGray    = lipgloss.Color("#6C6C6C")
	colorWhite   = lipgloss.Color("#FFFFFF")
	colorDim     = lipgloss.Color("#4E4E4E")
	colorGreen   = lipgloss.Color("#00FF87")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorRed     = lipgloss.Color("#FF5F5F")
)

// BannerInfo carries the values shown when the server starts
type BannerInfo struct {
	Version  string
	Address  string
	Database string
	Config   string
}

// RenderBanner returns the styled startup banner for `iafleet serve`
func RenderBanner(info BannerInfo) string {
	logoStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)
	versionStyle := lipgloss.NewStyle().Foreground(colorDimCyan)
	tipStyle := lipgloss.NewStyle().Foreground(colorDim)

	line := func(label, value string) string {
		return fmt.Sprintf("  %s %s", labelStyle.Render(fmt.Sprintf("%-8s", label)), valueStyle.Render(value))
	}

	config := info.Config
	if config == "" {
		config = "defaults + environment"
	}

	return fmt.Sprintf("\n%s %s\n\n%s\n%s\n%s\n%s\n\n%s\n",
		logoStyle.Render(" ◇  I A F L E E T"),
		versionStyle.Render("v"+info.Version),
		line("Listen", info.Address),
		line("Database", info.Database),
		line("Config", config),
		line("Env", runtime.GOOS+"/"+runtime.GOARCH),
		tipStyle.Render("  /api/v1 · /health · /metrics · Ctrl+C 停止"),
	)
}
