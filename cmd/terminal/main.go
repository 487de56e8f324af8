package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/montarelab/rev-ai/internal/config"
)

func main() {
	themeFlag := flag.String("theme", "", "UI theme (cyan, matrix, amber, dracula)")
	listThemes := flag.Bool("list-themes", false, "List all available themes")
	flag.Parse()

	if *listThemes {
		fmt.Println("Available themes:")
		for _, theme := range ListThemes() {
			fmt.Printf("  - %s\n", theme)
		}
		os.Exit(0)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// Log lines would tear the alternate screen.
	cfg.Logging.Output = "file"

	selectedTheme := *themeFlag
	if selectedTheme == "" {
		selectedTheme = os.Getenv("REVAI_THEME")
	}
	if selectedTheme == "" {
		selectedTheme = string(ThemeCyan)
	}

	theme := ThemeName(selectedTheme)
	if _, ok := palettes[theme]; !ok {
		fmt.Printf("Invalid theme '%s'. Use --list-themes to see available options.\n", theme)
		os.Exit(1)
	}

	sink := &programSink{}
	p := tea.NewProgram(initialModel(theme, cfg, sink), tea.WithAltScreen())
	sink.attach(p)

	final, err := p.Run()
	if m, ok := final.(*model); ok && m.cleanup != nil {
		m.cleanup()
	}
	if err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
