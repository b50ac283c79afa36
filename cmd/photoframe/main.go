// Command photoframe exercises the load and display pipeline against a raw
// card image file instead of real hardware. The image file is served to the
// SPI driver byte by byte through the emulated card, so everything above the
// bus behaves exactly as it would on the device.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/klarke/photoframe"
	"github.com/klarke/photoframe/card"
	"github.com/klarke/photoframe/vram"
)

func main() {
	root := &cobra.Command{
		Use:           "photoframe",
		Short:         "Still-image display pipeline over raw SD card images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfg photoframe.Config

	root.PersistentFlags().IntVar(&cfg.Width, "width", 0, "store width in pixels (default 640)")
	root.PersistentFlags().IntVar(&cfg.Height, "height", 0, "store height in pixels (default 480)")
	root.PersistentFlags().IntVar(&cfg.RefreshInterval, "refresh", 0, "memory refresh ceiling in ticks (default 64)")
	root.PersistentFlags().StringVar(&cfg.Extension, "ext", "", "file extension to locate (default BMP)")

	infoCmd := &cobra.Command{
		Use:   "info <image>",
		Short: "Mount a card image and describe the volume and the located file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := loadFrame(args[0], cfg)
			if err != nil {
				return err
			}

			info := frame.Volume().Info()
			entry := frame.Entry()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Label:               %s\n", frame.Volume().Label())
			fmt.Fprintf(out, "Partition start:     sector %d\n", info.PartitionStart)
			fmt.Fprintf(out, "Sectors per cluster: %d\n", info.SectorsPerCluster)
			fmt.Fprintf(out, "Reserved sectors:    %d\n", info.ReservedSectors)
			fmt.Fprintf(out, "Table start:         sector %d\n", info.FATStart)
			fmt.Fprintf(out, "Data start:          sector %d\n", info.DataStart)
			fmt.Fprintf(out, "Root cluster:        %d\n", info.RootCluster)
			fmt.Fprintf(out, "Total sectors:       %d\n", info.TotalSectors)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "File:                %s\n", entry.Name())
			fmt.Fprintf(out, "Size:                %d bytes\n", entry.Size())
			fmt.Fprintf(out, "Start cluster:       %d\n", entry.StartCluster())
			fmt.Fprintf(out, "Modified:            %s\n", entry.ModTime().Format("2006-01-02 15:04:05"))

			return nil
		},
	}

	var outPath string
	renderCmd := &cobra.Command{
		Use:   "render <image>",
		Short: "Run the full pipeline and export the pixel store as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := loadFrame(args[0], cfg)
			if err != nil {
				return err
			}
			if err := writePNG(frame.Store(), outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d written to %s\n",
				frame.Entry().Name(), frame.Store().Width(), frame.Store().Height(), outPath)
			return nil
		},
	}
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "out.png", "output PNG path")
	var frames int
	var budget int
	simulateCmd := &cobra.Command{
		Use:   "simulate <image>",
		Short: "Load an image and tick the display side for whole frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := loadFrame(args[0], cfg)
			if err != nil {
				return err
			}
			return simulate(cmd, frame, frames, budget)
		},
	}
	simulateCmd.Flags().IntVar(&frames, "frames", 4, "number of whole frames to display")
	simulateCmd.Flags().IntVar(&budget, "line-ticks", 0, "channel ticks per scanline (default 8x width)")

	root.AddCommand(infoCmd, renderCmd, simulateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "photoframe: %v\n", err)
		os.Exit(1)
	}
}

// fs is the filesystem card images are read from. Tests swap in a MemMapFs.
var fs = afero.NewOsFs()

// loadFrame runs one complete load session over the card image at path.
func loadFrame(path string, cfg photoframe.Config) (*photoframe.Frame, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	frame := photoframe.New(card.NewImageCard(file, stat.Size()), cfg)
	if err := frame.Load(); err != nil {
		status := frame.Status()
		return nil, fmt.Errorf("%s: %w", status.Code, err)
	}
	return frame, nil
}

// writePNG widens the 565 store back to 8-bit channels for inspection.
func writePNG(store *vram.Store, path string) error {
	img := image.NewRGBA(image.Rect(0, 0, store.Width(), store.Height()))
	for row := 0; row < store.Height(); row++ {
		for col := 0; col < store.Width(); col++ {
			c := store.At(row, col)
			img.SetRGBA(col, row, color.RGBA{R: c.R(), G: c.G(), B: c.B(), A: 0xFF})
		}
	}

	out, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	return png.Encode(out, img)
}

// simulate drives the scanline cache through whole display frames and reports
// the channel grant statistics and the worst-case line fill time.
func simulate(cmd *cobra.Command, frame *photoframe.Frame, frames, budget int) error {
	store := frame.Store()
	ctrl := frame.Controller()
	if budget == 0 {
		budget = store.Width() * 8
	}

	timing := &vram.LineTiming{}
	cache := vram.NewLineCache(ctrl, timing)

	tick := func(n int) {
		for i := 0; i < n; i++ {
			cache.Tick()
			ctrl.Tick()
		}
	}

	tick(budget) // prefetch of the first line

	lines := uint32(store.Height() * frames)
	for line := uint32(0); line < lines; line++ {
		timing.Advance(line)
		tick(budget)

		if err := cache.Fault(); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if !cache.TakeLineReady() {
			return fmt.Errorf("line %d: not ready within %d ticks", line, budget)
		}
	}

	stats := ctrl.Stats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Frames:          %d (%d lines of %d pixels)\n", frames, lines, store.Width())
	fmt.Fprintf(out, "Channel ticks:   %d\n", stats.Ticks)
	fmt.Fprintf(out, "Refresh grants:  %d\n", stats.Refreshes)
	fmt.Fprintf(out, "Pixel reads:     %d\n", stats.Reads)
	fmt.Fprintf(out, "Idle ticks:      %d\n", stats.Idle)
	fmt.Fprintf(out, "Worst line fill: %d ticks (deadline %d)\n", cache.MaxFillTicks(), budget)

	return nil
}
