package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#22C55E")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#94A3B8")
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleOK = lipgloss.NewStyle().
		Foreground(colorSuccess)

	styleFail = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	styleWarn = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)
)

func okMark() string   { return styleOK.Render("✓") }
func failMark() string { return styleFail.Render("✗") }
func warnMark() string { return styleWarn.Render("!") }
