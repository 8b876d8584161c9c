// Command orgasm is the thin CLI front-end over build.Assemble; it only
// wires flags onto that surface.
package main

import (
	"fmt"
	"os"

	"github.com/halcyon6303/orgtool/asm"
	"github.com/halcyon6303/orgtool/build"
	"github.com/halcyon6303/orgtool/pack"
	"github.com/spf13/cobra"
)

func main() {
	var targetModel, output, listingPath, debugPath, form, procName, entry string
	var includePaths []string
	var relocatable, optimize bool
	var base uint32

	root := &cobra.Command{
		Use:   "orgasm <source.asm>",
		Short: "Assemble HD6303 assembly into object/raw/procedure output",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			outForm, err := parseForm(form)
			if err != nil {
				return err
			}

			if outForm == asm.FormProcedure && procName == "" && output != "" {
				derived, derr := pack.DeriveName(output)
				if derr != nil {
					return fmt.Errorf("derive procedure name: %w", derr)
				}
				procName = derived
			}

			res, bundle := build.Assemble(string(src), includePaths, targetModel, build.AssembleOptions{
				Relocatable:   relocatable,
				Optimize:      optimize,
				WantListing:   listingPath != "",
				WantDebug:     debugPath != "",
				EntrySymbol:   entry,
				ProcedureName: procName,
				Form:          outForm,
				Base:          base,
			})
			if bundle.HasErrors() {
				for _, d := range bundle.Items() {
					fmt.Fprintln(os.Stderr, d.String())
				}
				return fmt.Errorf("assembly failed")
			}

			if output == "" {
				os.Stdout.Write(res.Object.Bytes)
			} else if err := os.WriteFile(output, res.Object.Bytes, 0644); err != nil {
				return err
			}
			if listingPath != "" {
				if err := os.WriteFile(listingPath, []byte(res.Listing), 0644); err != nil {
					return err
				}
			}
			if debugPath != "" {
				if err := os.WriteFile(debugPath, []byte(res.Debug), 0644); err != nil {
					return err
				}
			}
			return nil
		},
	}
	root.Flags().StringVar(&targetModel, "model", "CM", "target model (CM, XP, LA, LZ64)")
	root.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "additional INCLUDE/INCBIN search directory")
	root.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	root.Flags().StringVar(&form, "form", "raw", "output form: raw, object, procedure")
	root.Flags().BoolVar(&relocatable, "relocatable", false, "emit a self-relocating object")
	root.Flags().BoolVar(&optimize, "optimize", true, "accepted for compatibility; the peephole pass always runs")
	root.Flags().StringVar(&listingPath, "listing", "", "write a text listing to this path")
	root.Flags().StringVar(&debugPath, "debug", "", "write a debug sidecar to this path")
	root.Flags().StringVar(&procName, "name", "", "procedure-form name (default: derived from output filename)")
	root.Flags().StringVar(&entry, "entry", "", "entry symbol for object form")
	root.Flags().Uint32Var(&base, "base", 0, "load address")

	root.SetFlagErrorFunc(usageFlagError)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseForm(s string) (asm.OutputForm, error) {
	switch s {
	case "raw":
		return asm.FormRaw, nil
	case "object":
		return asm.FormObject, nil
	case "procedure":
		return asm.FormProcedure, nil
	default:
		return asm.FormRaw, fmt.Errorf("unknown output form %q: want raw, object, or procedure", s)
	}
}

// usageArgs wraps a cobra positional-args validator so argument-count
// mistakes exit with the usage code (2) rather than the operation code.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return nil
	}
}

func usageFlagError(cmd *cobra.Command, err error) error {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
	return nil
}
