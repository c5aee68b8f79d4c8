package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mathanim/internal/render"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that manim and ffmpeg are installed",
	RunE: func(*cobra.Command, []string) error {
		report := render.DependencyStatus(cfg.Render)
		fmt.Printf("manim:  %s\n", status(report.ManimFound, report.ManimPath))
		fmt.Printf("ffmpeg: %s (thumbnails)\n", status(report.FFmpegFound, report.FFmpegPath))
		if cfg.OpenAI.APIKey == "" {
			fmt.Println("openai: OPENAI_API_KEY is not set")
		} else {
			fmt.Println("openai: key configured")
		}
		return render.CheckDependencies(cfg.Render)
	},
}

func status(found bool, path string) string {
	if !found {
		return "missing"
	}
	return "ok " + path
}

func init() { rootCmd.AddCommand(doctorCmd) }
