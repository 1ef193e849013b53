// Command sh2c compiles a sh2 source file to a portable shell script.
package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sh2c/sh2c/internal/compiler/codegen"
	"github.com/sh2c/sh2c/internal/compiler/driver"
)

// envOverrides lets SH2C_TARGET / SH2C_OUT seed the flag defaults before
// cobra parses argv.
type envOverrides struct {
	Target string `envconfig:"SH2C_TARGET" default:"bash"`
	Out    string `envconfig:"SH2C_OUT"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var env envOverrides
	if err := envconfig.Process("sh2c", &env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var (
		target   string
		outPath  string
		chmodX   bool
		check    bool
		emitAst  bool
		emitIr   bool
		emitSh   bool
		emitFmt  bool
		noDiag   bool
	)

	root := &cobra.Command{
		Use:           "sh2c <entry.sh2>",
		Short:         "Compile a sh2 source file to a portable shell script",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(target)
			if err != nil {
				return err
			}
			mode := selectMode(check, emitAst, emitIr, emitSh, emitFmt)

			res := driver.Run(args[0], driver.Options{
				Target:             t,
				IncludeDiagnostics: !noDiag,
				OutPath:            outPath,
				ChmodX:             chmodX,
				Mode:               mode,
			})

			if res.Code == driver.ExitOK && res.Text != "" && outPath == "" {
				fmt.Fprint(os.Stdout, res.Text)
			}
			if res.Code != driver.ExitOK {
				os.Exit(int(res.Code))
			}
			return nil
		},
	}

	root.Flags().StringVar(&target, "target", env.Target, "emit target: bash or posix")
	root.Flags().StringVar(&outPath, "out", env.Out, "write the emitted script to this path")
	root.Flags().BoolVar(&chmodX, "chmod-x", false, "set the executable bit on --out")
	root.Flags().BoolVar(&check, "check", false, "compile and discard output, reporting diagnostics only")
	root.Flags().BoolVar(&emitAst, "emit-ast", false, "dump the parsed AST instead of emitting shell")
	root.Flags().BoolVar(&emitIr, "emit-ir", false, "dump the lowered IR instead of emitting shell")
	root.Flags().BoolVar(&emitSh, "emit-sh", false, "emit shell text (default behavior, explicit form)")
	root.Flags().BoolVar(&emitFmt, "fmt", false, "print the entry file's canonical formatted source instead of compiling it")
	root.Flags().BoolVar(&noDiag, "no-diag", false, "suppress diagnostic output on failure")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("sh2c")
		return 2
	}
	return 0
}

func parseTarget(s string) (codegen.Target, error) {
	switch s {
	case "", "bash":
		return codegen.Bash, nil
	case "posix":
		return codegen.POSIX, nil
	default:
		return codegen.Bash, fmt.Errorf("unknown --target %q: want bash or posix", s)
	}
}

func selectMode(check, emitAst, emitIr, emitSh, emitFmt bool) driver.Mode {
	switch {
	case check:
		return driver.ModeCheck
	case emitAst:
		return driver.ModeEmitAst
	case emitIr:
		return driver.ModeEmitIr
	case emitFmt:
		return driver.ModeFmt
	case emitSh:
		return driver.ModeEmitSh
	default:
		return driver.ModeDefault
	}
}
