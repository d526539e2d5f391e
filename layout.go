package main

import (
	"encoding/json"
	"fmt"
	"os"

	"sphere-cms/internal/render"
	"sphere-cms/internal/sphere"

	"github.com/spf13/cobra"
)

var (
	layoutN        int
	layoutRadius   float64
	layoutSVG      string
	layoutEquirect bool
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print a sphere layout as JSON, optionally rendering it to SVG",
	Example: `  sphere-cms layout --n 24 --radius 2
  sphere-cms layout --n 100 --svg sphere.svg --equirect`,
	RunE: runLayout,
}

func init() {
	layoutCmd.Flags().IntVar(&layoutN, "n", 12, "Number of points")
	layoutCmd.Flags().Float64VarP(&layoutRadius, "radius", "r", 2, "Sphere radius")
	layoutCmd.Flags().StringVar(&layoutSVG, "svg", "", "Also write an SVG preview to this file")
	layoutCmd.Flags().BoolVar(&layoutEquirect, "equirect", false, "Use the equirectangular projection for --svg")
	rootCmd.AddCommand(layoutCmd)
}

func runLayout(cmd *cobra.Command, args []string) error {
	layout, err := sphere.NewLayout(layoutN, layoutRadius)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(layout); err != nil {
		return err
	}

	if layoutSVG == "" {
		return nil
	}
	opts := render.DefaultOptions()
	opts.Width, opts.Height = cfg.Sphere.Width, cfg.Sphere.Height
	if layoutEquirect {
		opts.Projection = render.Equirect
	}
	f, err := os.Create(layoutSVG)
	if err != nil {
		return err
	}
	if err := render.SVG(f, layout, nil, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", layoutSVG)
	return nil
}
