package ui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// logTimeLayout формат времени в JSON журнале
const logTimeLayout = "02.01.2006 - 15:04:05.000Z07:00"

// Регулярное выражение для удаления ANSI-цветов
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// tailLogs читает последние limit записей JSON журнала zap.
// Отсутствующий файл не является ошибкой.
func tailLogs(path string, limit int) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var logs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > limit {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// formatLogLine превращает JSON запись в строку "[15:04:05] [INFO] msg (key: value)"
func formatLogLine(line string) string {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		// Не удалось распарсить JSON, добавляем как есть
		return line
	}

	level, _ := entry["level"].(string)
	ts, _ := entry["ts"].(string)
	msg, _ := entry["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse(logTimeLayout, ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		switch k {
		case "level", "ts", "msg", "caller":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", timestamp, level, msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " (%s: %v)", k, entry[k])
	}
	return b.String()
}

func renderLogsSection(logs []string) string {
	header := logsHeaderStyle.Render("ЛОГИ")
	content := strings.Builder{}

	for _, log := range logs {
		// Выделение по уровню логирования
		switch {
		case strings.Contains(log, "[ERROR]"):
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		case strings.Contains(log, "[WARN]"):
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		case strings.Contains(log, "[INFO]"):
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		case strings.Contains(log, "[DEBUG]"):
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}
		content.WriteString(log + "\n")
	}

	return logsSectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}
