// Command orgemu is the thin CLI front-end over build.Emulator: boot
// a ROM, load a pack into a slot, run it for a bounded number of cycles,
// script key taps, and read back the rendered display or a PNG snapshot.
package main

import (
	"fmt"
	"image/png"
	"os"

	"github.com/halcyon6303/orgtool/build"
	"github.com/halcyon6303/orgtool/peripherals/keyboard"
	"github.com/halcyon6303/orgtool/peripherals/lcd"
	"github.com/spf13/cobra"
)

func main() {
	var modelName, romPath, packPath string
	var slot int
	var cycles uint64
	var taps []string
	var tapHold uint64
	var pngOut string

	root := &cobra.Command{
		Use:   "orgemu",
		Short: "Boot a ROM, load a pack, run it, and read back the display",
		RunE: func(cmd *cobra.Command, args []string) error {
			emu, err := build.NewEmulator(modelName, nil)
			if err != nil {
				return err
			}

			if romPath != "" {
				rom, err := os.ReadFile(romPath)
				if err != nil {
					return fmt.Errorf("read ROM %s: %w", romPath, err)
				}
				emu.LoadROM(rom)
			}
			emu.Reset()

			if packPath != "" {
				img, err := os.ReadFile(packPath)
				if err != nil {
					return fmt.Errorf("read pack %s: %w", packPath, err)
				}
				if err := emu.LoadPack(img, slot); err != nil {
					return fmt.Errorf("load pack into slot %d: %w", slot, err)
				}
			}

			for _, t := range taps {
				emu.TapKey(keyboard.Key(t), tapHold)
			}

			ran, status := emu.Run(cycles)
			fmt.Fprintf(os.Stderr, "ran %d cycles, status=%s\n", ran, status)

			for _, row := range emu.DisplayText() {
				fmt.Println(row)
			}

			if pngOut != "" {
				f, err := os.Create(pngOut)
				if err != nil {
					return err
				}
				defer f.Close()
				img := emu.Machine().LCD.Render(lcd.PixelOptions{})
				return png.Encode(f, img)
			}
			return nil
		},
	}
	root.Flags().StringVar(&modelName, "model", "CM", "target model (CM, XP, LA, LZ64)")
	root.Flags().StringVar(&romPath, "rom", "", "device ROM image to boot")
	root.Flags().StringVar(&packPath, "pack", "", "pack image to load")
	root.Flags().IntVar(&slot, "slot", 0, "pack slot index (0-2)")
	root.Flags().Uint64Var(&cycles, "cycles", 2_000_000, "maximum cycles to run")
	root.Flags().StringArrayVar(&taps, "tap", nil, "key to tap before running (repeatable)")
	root.Flags().Uint64Var(&tapHold, "tap-hold", 50_000, "cycles each tapped key stays down")
	root.Flags().StringVar(&pngOut, "png", "", "write a pixel-view PNG snapshot to this path")

	root.SetFlagErrorFunc(usageFlagError)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usageFlagError(cmd *cobra.Command, err error) error {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
	return nil
}
