package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mathanim/internal/models"
	"mathanim/internal/render"
)

var (
	renderQuality string
	renderJSON    bool
)

var renderCmd = &cobra.Command{
	Use:   "render <prompt>",
	Short: "Generate and render one animation, printing the durable video path",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quality, err := models.ParseQuality(renderQuality)
		if err != nil {
			return err
		}
		if err := render.CheckDependencies(cfg.Render); err != nil {
			return err
		}

		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		out, err := a.orchestrator.Run(cmd.Context(), strings.Join(args, " "), quality)
		if err != nil {
			return err
		}

		if renderJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		fmt.Printf("video: %s (attempts=%d)\n", out.VideoPath, out.Attempts)
		if out.ThumbnailPath != "" {
			fmt.Printf("thumbnail: %s\n", out.ThumbnailPath)
		}
		if out.MirrorURL != "" {
			fmt.Printf("mirror: %s\n", out.MirrorURL)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderQuality, "quality", "q", string(models.Quality480p),
		"render quality ("+strings.Join(models.QualityNames(), ", ")+")")
	renderCmd.Flags().BoolVar(&renderJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(renderCmd)
}
