// internal/ui/dashboard.go
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/ui/style"
)

const logLines = 8

// assetRow is the dashboard view of one asset.
type assetRow struct {
	sale   domain.AssetSale
	price  uint64
	buys   int
	sells  int
	pool   string
	lastAt string
}

// Totals aggregates activity seen by the dashboard.
type Totals struct {
	Launches   int
	Buys       int
	Sells      int
	Migrations int
	Fees       uint64
}

// Model is the bubbletea dashboard listing assets with graduation progress.
type Model struct {
	title  string
	stream *events.Stream
	logs   *logger.Buffer

	keys     KeyMap
	help     help.Model
	bar      progress.Model
	logStyle style.LogStyles

	assets   map[string]*assetRow
	order    []string
	selected int
	totals   Totals

	showLogs bool
	width    int
	status   string
	done     bool
}

// NewModel creates a dashboard fed by stream. logs may be nil.
func NewModel(title string, stream *events.Stream, logs *logger.Buffer) Model {
	return Model{
		title:    title,
		stream:   stream,
		logs:     logs,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(24), progress.WithoutPercentage()),
		logStyle: style.NewLogStyles(style.DefaultPalette()),
		assets:   make(map[string]*assetRow),
		showLogs: logs != nil,
		width:    100,
		status:   "running",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.stream), tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, m.keys.Down):
			if m.selected < len(m.order)-1 {
				m.selected++
			}
		case key.Matches(msg, m.keys.ToggleLogs):
			m.showLogs = !m.showLogs && m.logs != nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case EventMsg:
		m.apply(msg.Event)
		return m, waitForEvent(m.stream)

	case DoneMsg:
		m.done = true
		m.status = msg.Summary
		if msg.Err != nil {
			m.status = "failed: " + msg.Err.Error()
		}
		return m, nil

	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m *Model) row(sale domain.AssetSale) *assetRow {
	k := sale.Mint.String()
	r, ok := m.assets[k]
	if !ok {
		r = &assetRow{}
		m.assets[k] = r
		m.order = append(m.order, k)
		sort.Strings(m.order)
	}
	r.sale = sale
	return r
}

func (m *Model) apply(e events.Event) {
	at := e.Timestamp().Local().Format("15:04:05")
	switch ev := e.(type) {
	case *events.AssetCreatedEvent:
		r := m.row(ev.Sale)
		r.price, r.lastAt = ev.InitialPrice, at
		m.totals.Launches++
		m.totals.Fees += ev.ListingFee
	case *events.PurchaseCompletedEvent:
		r := m.row(ev.Sale)
		r.price, r.lastAt = ev.CurrentPrice, at
		r.buys++
		m.totals.Buys++
		m.totals.Fees += ev.TradingFee
	case *events.SaleCompletedEvent:
		r := m.row(ev.Sale)
		r.price, r.lastAt = ev.CurrentPrice, at
		r.sells++
		m.totals.Sells++
		m.totals.Fees += ev.TradingFee
	case *events.MigrationCompletedEvent:
		r := m.row(ev.Sale)
		r.pool, r.lastAt = ev.Pool.String(), at
		m.totals.Migrations++
		m.totals.Fees += ev.MigrationFee
	}
}

// Totals returns the aggregated activity.
func (m Model) Totals() Totals {
	return m.totals
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(style.HeaderStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(style.StatStyle.Render(fmt.Sprintf(
		"assets %d   buys %d   sells %d   migrations %d   fees %s SOL   status %s",
		len(m.order), m.totals.Buys, m.totals.Sells, m.totals.Migrations,
		curve.SOL(m.totals.Fees).StringFixed(4), m.status)))
	b.WriteString("\n\n")

	b.WriteString(m.assetTable())

	if m.showLogs {
		b.WriteString("\n")
		b.WriteString(m.logPane())
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) assetTable() string {
	if len(m.order) == 0 {
		return style.MutedStyle.Render("no assets launched yet") + "\n"
	}
	var rows []string
	rows = append(rows, style.TableHeaderStyle.Render(fmt.Sprintf(
		"%-10s %-10s %-20s %-26s %8s %14s %6s %6s",
		"SYMBOL", "MINT", "PHASE", "PROGRESS", "PCT", "RAISED SOL", "BUYS", "SELLS")))

	for i, k := range m.order {
		r := m.assets[k]
		params := r.sale.Curve()
		bps := params.Progress(r.sale.AmountSold)
		phase := r.sale.Phase.String()
		phaseCell := lipgloss.NewStyle().Foreground(style.PhaseColor(phase)).Render(fmt.Sprintf("%-20s", phase))
		line := fmt.Sprintf("%-10s %-10s %s %s %7s%% %14s %6d %6d",
			truncate(r.sale.Symbol, 10),
			logger.ShortAddress(k),
			phaseCell,
			m.bar.ViewAs(float64(bps)/float64(curve.BpsDenominator)),
			curve.Percent(bps).StringFixed(2),
			curve.SOL(r.sale.FundsRaised).StringFixed(4),
			r.buys, r.sells)
		if i == m.selected {
			line = style.TableRowSelectedStyle.Render(line)
		} else {
			line = style.TableRowStyle.Render(line)
		}
		rows = append(rows, line)
	}

	if m.selected < len(m.order) {
		r := m.assets[m.order[m.selected]]
		detail := fmt.Sprintf("%s  price %d lamports/token  target %s SOL  last %s",
			r.sale.Name, r.price, curve.SOL(r.sale.TargetFundsRaised).String(), r.lastAt)
		if r.pool != "" {
			detail += "  pool " + r.pool
		}
		rows = append(rows, "", style.MutedStyle.Render(detail))
	}
	return style.PanelStyle.Render(strings.Join(rows, "\n")) + "\n"
}

func (m Model) logPane() string {
	lines := []string{m.logStyle.Title.Render("Logs")}
	for _, e := range m.logs.Recent(logLines) {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			m.logStyle.Timestamp.Render(e.Time.Format("15:04:05")),
			m.logStyle.Level(e.Level).Render(fmt.Sprintf("%-5s", strings.ToUpper(e.Level))),
			truncate(e.Message, m.width-20)))
	}
	return m.logStyle.Container.Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	if n <= 0 || len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
