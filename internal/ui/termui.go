package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skalibog/quantladder/internal/analysis/liquidation"
	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/models"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	signalsHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#ffffff")).
				Background(secondaryColor)
	logsHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	logsSectionStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(secondaryColor).
				Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)

	longBarStyle    = lipgloss.NewStyle().Foreground(errorColor)
	shortBarStyle   = lipgloss.NewStyle().Foreground(successColor)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	currentRowStyle = lipgloss.NewStyle().Background(lipgloss.Color("#222222")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(errorColor)
	kpiStyle        = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
)

// rangeChoices диапазоны лестницы, переключаемые клавишей r
var rangeChoices = []float64{0.10, 0.15, 0.20}

const maxLogLines = 8

// LadderService источник лестницы ликвидаций
type LadderService interface {
	Liquidation(ctx context.Context, symbol string, tf models.Timeframe, opts liquidation.Options) (models.LiquidationMap, error)
	LiquidationOptions() liquidation.Options
}

// TermUI представляет терминальный интерфейс
type TermUI struct {
	ctx     context.Context
	service LadderService
	config  config.UIConfig
	symbol  string
	logFile string
}

// Сообщения для обновления UI
type ladderMsg struct {
	// opts параметры запроса; ответ на устаревший запрос отбрасывается
	opts   liquidation.Options
	ladder models.LiquidationMap
	err    error
}
type tickMsg time.Time
type logsMsg []string

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui        *TermUI
	opts      liquidation.Options
	rangeIdx  int
	ladder    *models.LiquidationMap
	err       error
	loading   bool
	logs      []string
	width     int
	height    int
	updatedAt time.Time
}

// NewTermUI создает интерфейс; logFile - JSON журнал, хвост которого показывается внизу экрана
func NewTermUI(ctx context.Context, cfg config.UIConfig, service LadderService, symbol, logFile string) *TermUI {
	return &TermUI{
		ctx:     ctx,
		service: service,
		config:  cfg,
		symbol:  symbol,
		logFile: logFile,
	}
}

// Start запускает интерфейс и блокирует до выхода
func (ui *TermUI) Start() error {
	program := tea.NewProgram(ui.newModel(), tea.WithAltScreen(), tea.WithContext(ui.ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

func (ui *TermUI) newModel() bubbleModel {
	opts := ui.service.LiquidationOptions()
	rangeIdx := 1
	for i, r := range rangeChoices {
		if r == opts.RangePct {
			rangeIdx = i
		}
	}
	opts.RangePct = rangeChoices[rangeIdx]
	if !opts.Timeframe.Valid() {
		opts.Timeframe = models.Timeframe4H
	}

	return bubbleModel{
		ui:       ui,
		opts:     opts,
		rangeIdx: rangeIdx,
		loading:  true,
		width:    120,
		height:   40,
	}
}

func (ui *TermUI) refreshInterval() time.Duration {
	if ui.config.RefreshRate <= 0 {
		return time.Minute
	}
	return time.Duration(ui.config.RefreshRate) * time.Millisecond
}

func (m bubbleModel) fetch() tea.Cmd {
	ui, opts := m.ui, m.opts
	return func() tea.Msg {
		ladder, err := ui.service.Liquidation(ui.ctx, ui.symbol, opts.Timeframe, opts)
		return ladderMsg{opts: opts, ladder: ladder, err: err}
	}
}

func (m bubbleModel) tick() tea.Cmd {
	return tea.Tick(m.ui.refreshInterval(), func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m bubbleModel) loadLogs() tea.Cmd {
	file := m.ui.logFile
	return func() tea.Msg {
		logs, err := tailLogs(file, maxLogLines)
		if err != nil {
			return logsMsg{fmt.Sprintf("Ошибка загрузки логов: %v", err)}
		}
		return logsMsg(logs)
	}
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick(), m.loadLogs())
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1", "2", "3":
			tf := models.Timeframes[msg.String()[0]-'1']
			if tf == m.opts.Timeframe {
				return m, nil
			}
			m.opts.Timeframe = tf
			m.loading = true
			return m, m.fetch()
		case "r":
			m.rangeIdx = (m.rangeIdx + 1) % len(rangeChoices)
			m.opts.RangePct = rangeChoices[m.rangeIdx]
			m.loading = true
			return m, m.fetch()
		case "u":
			m.loading = true
			return m, tea.Batch(m.fetch(), m.loadLogs())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case ladderMsg:
		if msg.opts != m.opts {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			ladder := msg.ladder
			m.ladder = &ladder
			m.updatedAt = time.Now()
		}

	case logsMsg:
		m.logs = msg

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.loadLogs(), m.tick())
	}

	return m, nil
}

func (m bubbleModel) View() string {
	title := titleStyle.Render(fmt.Sprintf("QuantLadder - %s liquidation map", m.ui.symbol))

	status := fmt.Sprintf("Таймфрейм: %s  Диапазон: ±%.0f%%", m.opts.Timeframe, m.opts.RangePct*100)
	if m.loading {
		status += "  Обновление..."
	} else if !m.updatedAt.IsZero() {
		status += "  Обновлено: " + m.updatedAt.Format("15:04:05")
	}

	sections := []string{title, status}
	if m.err != nil {
		sections = append(sections, errorStyle.Render("Ошибка: "+m.err.Error()))
	}
	if m.ladder != nil {
		sections = append(sections,
			kpiStyle.Render(RenderKPI(*m.ladder)),
			RenderLadder(*m.ladder, m.width-8),
			mutedStyle.Render(strings.Join(m.ladder.ModelNotes, " ")),
		)
	} else if m.err == nil {
		sections = append(sections, "Ожидание данных...")
	}
	if len(m.logs) > 0 {
		sections = append(sections, renderLogsSection(m.logs))
	}
	sections = append(sections, footerStyle.Render("Клавиши: 1/2/3 - таймфрейм 4h/1d/1w, R - диапазон, U - обновить, Q - выход"))

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
