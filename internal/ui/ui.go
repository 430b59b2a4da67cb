package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Green     = lipgloss.Color("42")
	Amber     = lipgloss.Color("214")
	Red       = lipgloss.Color("196")
	Blue      = lipgloss.Color("39")
	Cyan      = lipgloss.Color("51")
	White     = lipgloss.Color("255")
	LightGray = lipgloss.Color("245")

	successStyle = lipgloss.NewStyle().Foreground(Green).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(Cyan)
	debugStyle   = lipgloss.NewStyle().Foreground(LightGray)
	warnStyle    = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(Red).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(White).Bold(true).Underline(true)
)

func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

func Info(format string, args ...any) {
	fmt.Println(infoStyle.Render(fmt.Sprintf(format, args...)))
}

func Debug(format string, args ...any) {
	fmt.Println(debugStyle.Render(fmt.Sprintf(format, args...)))
}

func Warn(format string, args ...any) {
	fmt.Println(warnStyle.Render(fmt.Sprintf(format, args...)))
}

func Error(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(format, args...)))
}

// Section prints a titled block of lines, indented under the title.
func Section(title string, lines []string) {
	fmt.Println(sectionStyle.Render(title))
	for _, line := range lines {
		fmt.Printf("  %s\n", line)
	}
}

// StateStyle colorizes well-known deployment and resource states.
func StateStyle(state string) string {
	switch strings.ToLower(state) {
	case "running", "active", "available", "healthy", "create_complete", "update_complete", "completed":
		return lipgloss.NewStyle().Foreground(Green).Render(state)
	case "pending", "in_progress", "provisioning", "modifying", "draining":
		return lipgloss.NewStyle().Foreground(Amber).Render(state)
	case "failed", "stopped", "unhealthy", "rollback_complete", "delete_failed":
		return lipgloss.NewStyle().Foreground(Red).Render(state)
	default:
		return lipgloss.NewStyle().Foreground(LightGray).Italic(true).Render(state)
	}
}
