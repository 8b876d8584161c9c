// Command orgc is the thin CLI front-end over build.BuildProgram: C
// sources compile, assembly sources concatenate, one entry point.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/halcyon6303/orgtool/build"
	"github.com/halcyon6303/orgtool/cc"
	"github.com/halcyon6303/orgtool/diag"
	"github.com/spf13/cobra"
)

func main() {
	var includePaths []string
	var targetModel string
	var output string

	root := &cobra.Command{
		Use:   "orgc <source.c> [more.c...]",
		Short: "Compile the restricted C dialect to HD6303 assembly",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cSources []cc.Source
			var asmSources []string
			for _, path := range args {
				text, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				if strings.HasSuffix(path, ".asm") || strings.HasSuffix(path, ".s") {
					asmSources = append(asmSources, string(text))
				} else {
					cSources = append(cSources, cc.Source{Name: path, Text: string(text)})
				}
			}
			res := build.BuildProgram(cSources, asmSources, includePaths, targetModel, build.CompileOptions{})

			if res.Bundle != nil && res.Bundle.HasErrors() {
				printDiagnostics(res.Bundle)
				return fmt.Errorf("compilation failed")
			}

			if output == "" {
				fmt.Print(res.Assembly)
				return nil
			}
			return os.WriteFile(output, []byte(res.Assembly), 0644)
		},
	}
	root.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "additional #include search directory")
	root.Flags().StringVar(&targetModel, "model", "CM", "target model (CM, XP, LA, LZ64)")
	root.Flags().StringVarP(&output, "output", "o", "", "output assembly file (default: stdout)")

	root.SetFlagErrorFunc(usageFlagError)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printDiagnostics(b *diag.Bundle) {
	for _, d := range b.Items() {
		fmt.Fprintln(os.Stderr, d.String())
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
