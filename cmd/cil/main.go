package main

import (
	"fmt"
	"io"
	"os"

	"github.com/nlucid/cil/pkg/machine"
	"github.com/spf13/cobra"
	"tlog.app/go/tlog"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "cil",
		Short:         "C intermediate representation toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(errOut, tlog.LstdFlags))
			}
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log warnings and traces to stderr")

	rootCmd.AddCommand(newVersionCmd(out))
	rootCmd.AddCommand(newMachineCmd(out))
	return rootCmd
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "cil %s\n", version)
		},
	}
}

// newMachineCmd shows a target data model: one of the built-in dialects
// or a model loaded from a YAML file.
func newMachineCmd(out io.Writer) *cobra.Command {
	var target string
	var configPath string

	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Show a target data model",
		RunE: func(cmd *cobra.Command, args []string) error {
			var m *machine.Machine
			var err error
			switch {
			case configPath != "":
				m, err = machine.Load(configPath)
				if err != nil {
					return err
				}
			case target == "gcc64":
				m = machine.Gcc64()
			case target == "gcc32":
				m = machine.Gcc32()
			case target == "msvc":
				m = machine.Msvc32()
			default:
				return fmt.Errorf("unknown target %q (want gcc64, gcc32 or msvc)", target)
			}
			printMachine(out, m)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "gcc64", "built-in data model: gcc64, gcc32 or msvc")
	cmd.Flags().StringVar(&configPath, "config", "", "load the data model from a YAML file")
	return cmd
}

func printMachine(out io.Writer, m *machine.Machine) {
	dialect := "gcc"
	if m.Msvc {
		dialect = "msvc"
	}
	fmt.Fprintf(out, "dialect:          %s\n", dialect)
	fmt.Fprintf(out, "short:            size %d align %d\n", m.SizeofShort, m.AlignofShort)
	fmt.Fprintf(out, "int:              size %d align %d\n", m.SizeofInt, m.AlignofInt)
	fmt.Fprintf(out, "long:             size %d align %d\n", m.SizeofLong, m.AlignofLong)
	fmt.Fprintf(out, "long long:        size %d align %d\n", m.SizeofLongLong, m.AlignofLongLong)
	fmt.Fprintf(out, "enum:             size %d align %d\n", m.SizeofEnum, m.AlignofEnum)
	fmt.Fprintf(out, "pointer:          size %d align %d\n", m.SizeofPtr, m.AlignofPtr)
	fmt.Fprintf(out, "double:           size %d align %d\n", m.SizeofDouble, m.AlignofDouble)
	fmt.Fprintf(out, "long double:      size %d align %d\n", m.SizeofLongDouble, m.AlignofLongDouble)
	fmt.Fprintf(out, "va_list:          size %d align %d\n", m.SizeofVaList, m.AlignofVaList)
	fmt.Fprintf(out, "char is unsigned: %v\n", m.CharIsUnsigned)
}
