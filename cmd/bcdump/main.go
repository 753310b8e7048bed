package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/bcio/bitcode/ir"
	"github.com/bcio/bitcode/reader"
)

func main() {
	var (
		bcFile     = flag.String("bc", "", "Path to bitcode file")
		tripleOnly = flag.Bool("triple", false, "Print the target triple and exit")
		lazy       = flag.Bool("lazy", false, "Defer function bodies; decode only the one named by -func")
		funcName   = flag.String("func", "", "Materialize only this function (with -lazy)")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *bcFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: bcdump -bc <file.bc> [-lazy [-func name]] [-v]")
		fmt.Fprintln(os.Stderr, "       bcdump -bc <file.bc> -triple")
		os.Exit(1)
	}

	if err := run(*bcFile, *funcName, *tripleOnly, *lazy, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(bcFile, funcName string, tripleOnly, lazy, verbose bool) error {
	ctx := context.Background()

	data, err := os.ReadFile(bcFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	if tripleOnly {
		triple, err := reader.ReadTargetTriple(data)
		if err != nil {
			return fmt.Errorf("read triple: %w", err)
		}
		fmt.Println(triple)
		return nil
	}

	opts := reader.Options{Lazy: lazy}
	if verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer log.Sync()
		opts.Logger = log
	}

	var m *ir.Module
	if lazy {
		m, err = reader.DecodeLazy(data, opts)
	} else {
		m, err = reader.Decode(data, opts)
	}
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if lazy && funcName != "" {
		fn := m.FuncByName(funcName)
		if fn == nil {
			return fmt.Errorf("no function %q", funcName)
		}
		if err := m.Mat.Materialize(ctx, fn); err != nil {
			return fmt.Errorf("materialize %s: %w", funcName, err)
		}
	}

	fmt.Printf("Module: %s\n", bcFile)
	if m.TargetTriple != "" {
		fmt.Printf("Target triple: %s\n", m.TargetTriple)
	}
	if m.DataLayout != "" {
		fmt.Printf("Data layout: %s\n", m.DataLayout)
	}
	fmt.Printf("Globals: %d\n", len(m.Globals))
	fmt.Printf("Functions: %d\n", len(m.Funcs))
	fmt.Printf("Aliases: %d\n", len(m.Aliases))
	fmt.Printf("Named metadata: %d\n", len(m.NamedMD))

	if len(m.Globals) > 0 {
		fmt.Printf("\nGlobal variables:\n")
		for _, g := range m.Globals {
			kind := "global"
			if g.IsConstant {
				kind = "constant"
			}
			init := ""
			if g.Initializer() != nil {
				init = " = <init>"
			}
			fmt.Printf("  @%s: %s %s%s\n", g.Name(), kind, g.ValueType.String(), init)
		}
	}

	if len(m.Funcs) > 0 {
		fmt.Printf("\nFunctions:\n")
		for _, fn := range m.Funcs {
			state := "declare"
			switch {
			case !fn.IsDeclaration():
				state = fmt.Sprintf("define, %d blocks", len(fn.Blocks))
			case m.Mat != nil && m.Mat.IsMaterializable(fn):
				state = "deferred"
			}
			fmt.Printf("  @%s: %s (%s)\n", fn.Name(), fn.Sig.String(), state)
		}
	}

	if len(m.NamedMD) > 0 {
		fmt.Printf("\nNamed metadata:\n")
		for _, md := range m.NamedMD {
			fmt.Printf("  !%s: %d operands\n", md.Name, len(md.Operands))
		}
	}
	return nil
}
