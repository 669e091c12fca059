package ui

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/skalibog/quantladder/pkg/mathutil"
	"github.com/skalibog/quantladder/pkg/models"
)

const (
	// minBarShare минимальная длина полосы относительно максимума стороны
	minBarShare = 0.02
	priceColumn = 22
)

// FormatUSD сокращенная запись суммы: $1.23B, $34.0M, $120K
func FormatUSD(v int64) string {
	f := float64(v)
	switch {
	case f >= 1e9:
		return fmt.Sprintf("$%.2fB", math.Round(f/1e7)/100)
	case f >= 1e6:
		return fmt.Sprintf("$%.1fM", math.Round(f/1e5)/10)
	case f >= 1e3:
		return fmt.Sprintf("$%.0fK", math.Round(f/1e3))
	}
	return "$" + strconv.FormatInt(v, 10)
}

// FormatPct отклонение от цены со знаком, один знак после запятой
func FormatPct(v float64) string {
	pct := math.Round(v*1000) / 10
	if pct == 0 {
		// убираем отрицательный ноль
		pct = 0
	}
	if pct > 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}

// FormatPrice цена с разделителем тысяч
func FormatPrice(v float64) string {
	if v < 1000 {
		return "$" + strconv.FormatFloat(mathutil.RoundByMagnitude(v), 'f', -1, 64)
	}
	digits := strconv.FormatInt(int64(math.Round(v)), 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return "$" + b.String()
}

// barLength длина полосы в символах; не меньше minBarShare от ширины
func barLength(value, maxValue int64, width int) int {
	if maxValue < 1 {
		maxValue = 1
	}
	share := math.Max(float64(value)/float64(maxValue), minBarShare)
	n := int(math.Round(share * float64(width)))
	if n < 1 {
		n = 1
	}
	if n > width {
		n = width
	}
	return n
}

// RenderLadder лестница ликвидаций: длинные слева, короткие справа, цены по убыванию
func RenderLadder(ladder models.LiquidationMap, width int) string {
	if len(ladder.Levels) == 0 {
		return mutedStyle.Render("Нет данных для лестницы")
	}

	sorted := append([]models.LiquidationLevel(nil), ladder.Levels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price > sorted[j].Price })

	var maxLong, maxShort int64 = 1, 1
	for _, l := range sorted {
		if l.LongUSD > maxLong {
			maxLong = l.LongUSD
		}
		if l.ShortUSD > maxShort {
			maxShort = l.ShortUSD
		}
	}

	side := (width - priceColumn) / 2
	barWidth := side - 9
	if barWidth < 4 {
		barWidth = 4
	}

	var b strings.Builder
	b.WriteString(headerRow(side))
	b.WriteByte('\n')

	for _, l := range sorted {
		longBar := strings.Repeat("█", barLength(l.LongUSD, maxLong, barWidth))
		shortBar := strings.Repeat("█", barLength(l.ShortUSD, maxShort, barWidth))

		longStyle, shortStyle := longBarStyle, shortBarStyle
		switch l.Zone {
		case models.ZoneAbove:
			longStyle = mutedStyle
		case models.ZoneBelow:
			shortStyle = mutedStyle
		}

		left := lipgloss.NewStyle().Width(side).Align(lipgloss.Right).
			Render(longStyle.Render(longBar) + " " + fmt.Sprintf("%7s", FormatUSD(l.LongUSD)))
		price := lipgloss.NewStyle().Width(priceColumn).Align(lipgloss.Center).
			Render(fmt.Sprintf("%s %s", FormatPrice(l.Price), FormatPct(l.DistancePct)))
		right := lipgloss.NewStyle().Width(side).Align(lipgloss.Left).
			Render(fmt.Sprintf("%-7s", FormatUSD(l.ShortUSD)) + " " + shortStyle.Render(shortBar))

		row := left + price + right
		if l.Zone == models.ZoneCurrent {
			row = currentRowStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderKPI строка с текущей ценой и сильнейшими кластерами
func RenderKPI(ladder models.LiquidationMap) string {
	parts := []string{
		fmt.Sprintf("%s %s", ladder.Symbol, ladder.Timeframe),
		"Цена: " + FormatPrice(ladder.CurrentPrice),
	}
	if len(ladder.TopLongLevels) > 0 {
		top := ladder.TopLongLevels[0]
		parts = append(parts, fmt.Sprintf("Лонги: %s @ %s", FormatUSD(top.LongUSD), FormatPrice(top.Price)))
	}
	if len(ladder.TopShortLevels) > 0 {
		top := ladder.TopShortLevels[0]
		parts = append(parts, fmt.Sprintf("Шорты: %s @ %s", FormatUSD(top.ShortUSD), FormatPrice(top.Price)))
	}
	return strings.Join(parts, "  |  ")
}

func headerRow(side int) string {
	left := lipgloss.NewStyle().Width(side).Align(lipgloss.Right).Render("Long liquidations (price drops)")
	mid := lipgloss.NewStyle().Width(priceColumn).Align(lipgloss.Center).Render("Price")
	right := lipgloss.NewStyle().Width(side).Align(lipgloss.Left).Render("Short liquidations (price rises)")
	return signalsHeaderStyle.Render(left + mid + right)
}
