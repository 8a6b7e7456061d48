package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
)

// Renderer handles all terminal output: markdown prompts and tables
type Renderer struct {
	glamour *glamour.TermRenderer
	width   int
}

// NewRenderer creates a renderer with the given terminal width
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &Renderer{
		glamour: r,
		width:   width,
	}
}

// RenderMarkdown renders markdown text to styled terminal output
func (r *Renderer) RenderMarkdown(md string) string {
	if r.glamour == nil {
		return md
	}
	out, err := r.glamour.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

// RenderIAs renders the dashboard table
func (r *Renderer) RenderIAs(rows []usecase.IASummary) string {
	if len(rows) == 0 {
		return r.empty("no IAs yet")
	}

	t := r.newTable("ID", "NAME", "PHONE", "STATUS", "CHANNEL", "AI API", "ACTIVE PROMPT")
	for _, row := range rows {
		channel, provider := "-", "-"
		if row.Config != nil {
			channel = orDash(row.Config.Config.Channel())
			provider = orDash(row.Config.Config.Provider())
		}
		active := "-"
		if row.ActivePrompt != nil {
			active = truncate(firstLine(row.ActivePrompt.Text()), 40)
		}
		t.Row(
			strconv.FormatUint(uint64(row.IA.ID()), 10),
			row.IA.Name(),
			row.IA.PhoneNumber(),
			row.IA.Status(),
			channel,
			provider,
			active,
		)
	}
	return t.Render()
}

// RenderPrompts renders a prompt listing; rows without an IA name omit that column
func (r *Renderer) RenderPrompts(rows []usecase.PromptOverview) string {
	if len(rows) == 0 {
		return r.empty("no prompts")
	}

	t := r.newTable("ID", "IA", "ACTIVE", "TEXT")
	for _, row := range rows {
		ia := row.IAName
		if ia == "" {
			ia = strconv.FormatUint(uint64(row.Prompt.IAID()), 10)
		}
		active := ""
		if row.Prompt.IsActive() {
			active = "●"
		}
		t.Row(
			strconv.FormatUint(uint64(row.Prompt.ID()), 10),
			ia,
			active,
			truncate(firstLine(row.Prompt.Text()), 60),
		)
	}
	return t.Render()
}

// RenderPrompt renders one prompt with a header line and markdown body
func (r *Renderer) RenderPrompt(p *entity.Prompt) string {
	header := lipgloss.NewStyle().Foreground(colorCyan).Bold(true).
		Render(fmt.Sprintf("Prompt #%d", p.ID()))
	meta := lipgloss.NewStyle().Foreground(colorGray).
		Render(fmt.Sprintf("ia %d · v%d · updated %s", p.IAID(), p.Version(), p.UpdatedAt().Format(time.DateTime)))
	if p.IsActive() {
		meta += " " + lipgloss.NewStyle().Foreground(colorGreen).Render("active")
	}
	return header + "\n" + meta + "\n\n" + r.RenderMarkdown(p.Text())
}

// RenderConfig renders a config with its credential map (already masked or revealed by the caller)
func (r *Renderer) RenderConfig(cfg *entity.IAConfig, creds map[string]string, credErr string) string {
	labelStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)

	var b strings.Builder
	b.WriteString(labelStyle.Render("IA") + valueStyle.Render(strconv.FormatUint(uint64(cfg.IAID()), 10)) + "\n")
	b.WriteString(labelStyle.Render("Channel") + valueStyle.Render(orDash(cfg.Channel())) + "\n")
	b.WriteString(labelStyle.Render("AI API") + valueStyle.Render(orDash(cfg.Provider())) + "\n")
	b.WriteString(labelStyle.Render("Version") + valueStyle.Render(strconv.Itoa(cfg.Version())) + "\n")

	if credErr != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(colorRed).Render("credentials: "+credErr) + "\n")
		return b.String()
	}
	if len(creds) == 0 {
		b.WriteString(labelStyle.Render("Credentials") + lipgloss.NewStyle().Foreground(colorDim).Render("(none)") + "\n")
		return b.String()
	}

	t := r.newTable("KEY", "VALUE")
	for _, k := range usecase.SortedKeys(creds) {
		t.Row(k, creds[k])
	}
	b.WriteString(t.Render())
	return b.String()
}

// RenderLeads renders the leads of one IA
func (r *Renderer) RenderLeads(leads []*entity.Lead) string {
	if len(leads) == 0 {
		return r.empty("no leads")
	}

	t := r.newTable("ID", "NAME", "PHONE", "MESSAGE", "RESUME", "CREATED")
	for _, l := range leads {
		msg, _ := json.Marshal(l.Message())
		t.Row(
			strconv.FormatUint(uint64(l.ID()), 10),
			orDash(deref(l.Name())),
			orDash(deref(l.Phone())),
			truncate(string(msg), 40),
			truncate(orDash(deref(l.Resume())), 30),
			l.CreatedAt().Format(time.DateTime),
		)
	}
	return t.Render()
}

// RenderSuccess renders a one-line confirmation
func (r *Renderer) RenderSuccess(msg string) string {
	return lipgloss.NewStyle().Foreground(colorGreen).Render("✓") + " " + msg
}

// RenderWarning renders a one-line warning
func (r *Renderer) RenderWarning(msg string) string {
	return lipgloss.NewStyle().Foreground(colorYellow).Render("!") + " " + msg
}

func (r *Renderer) newTable(headers ...string) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func (r *Renderer) empty(msg string) string {
	return lipgloss.NewStyle().Foreground(colorGray).Italic(true).Render("  " + msg)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
