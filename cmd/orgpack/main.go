// Command orgpack is the thin CLI front-end over build.PackCreate/
// PackInspect/PackExtract.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/halcyon6303/orgtool/build"
	"github.com/halcyon6303/orgtool/pack"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{Use: "orgpack", Short: "Create, inspect, and extract OPK pack images"}

	var size uint32
	var recordType, name, output string
	createCmd := &cobra.Command{
		Use:   "create <payload-file>",
		Short: "Wrap a single payload file into a new pack image",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			recName := name
			if recName == "" {
				recName, err = pack.DeriveName(args[0])
				if err != nil {
					return err
				}
			}
			typ := pack.RecordProcedure
			if recordType == "data" {
				typ = pack.RecordData
			}
			img, bundle := build.PackCreate([]pack.Record{{Name: recName, Type: typ, Payload: payload}}, pack.SizeClass(size))
			if bundle != nil && bundle.HasErrors() {
				for _, d := range bundle.Items() {
					fmt.Fprintln(os.Stderr, d.String())
				}
				return fmt.Errorf("pack_create failed")
			}
			if output == "" {
				output = args[0] + ".opk"
			}
			return os.WriteFile(output, img, 0644)
		},
	}
	createCmd.Flags().Uint32Var(&size, "size", uint32(pack.Size32K), "pack size in bytes: 8192, 16384, 32768, 65536, 131072")
	createCmd.Flags().StringVar(&recordType, "type", "procedure", "record type: procedure or data")
	createCmd.Flags().StringVar(&name, "name", "", "record name (default: derived from payload filename)")
	createCmd.Flags().StringVarP(&output, "output", "o", "", "output pack file (default: <payload>.opk)")

	inspectCmd := &cobra.Command{
		Use:   "inspect <pack-file>",
		Short: "Print a pack image's record directory as JSON",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			dir, bundle := build.PackInspect(img)
			if bundle != nil && bundle.HasErrors() {
				for _, d := range bundle.Items() {
					fmt.Fprintln(os.Stderr, d.String())
				}
				return fmt.Errorf("pack_inspect failed")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(dir)
		},
	}

	extractCmd := &cobra.Command{
		Use:   "extract <pack-file> <record-name>",
		Short: "Write one record's payload to stdout or -o",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			payload, bundle := build.PackExtract(img, args[1])
			if bundle != nil && bundle.HasErrors() {
				for _, d := range bundle.Items() {
					fmt.Fprintln(os.Stderr, d.String())
				}
				return fmt.Errorf("pack_extract failed")
			}
			if output == "" {
				os.Stdout.Write(payload)
				return nil
			}
			return os.WriteFile(output, payload, 0644)
		},
	}
	extractCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")

	root.AddCommand(createCmd, inspectCmd, extractCmd)
	root.SetFlagErrorFunc(usageFlagError)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
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
