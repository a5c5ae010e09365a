// Command ccaction is a thin driver that assembles and runs a single C/C++
// compile action from the command line, wiring together the toolchain
// configuration, the local executor, and the inclusion validator.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	flags "github.com/thought-machine/go-flags"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/please-build/cc-compile-action/src/cc"
	"github.com/please-build/cc-compile-action/src/cli"
	"github.com/please-build/cc-compile-action/src/config"
	"github.com/please-build/cc-compile-action/src/exec"
	"github.com/please-build/cc-compile-action/src/fs"
)

var log = logging.MustGetLogger("ccaction")

// compileActionClassID identifies the plain compile behaviour in every
// action's fingerprint. It is fixed so keys stay comparable across runs.
var compileActionClassID = uuid.MustParse("3f6c2a1e-9b4d-4c8e-a7f0-5d2e8b1c9a63")

var opts struct {
	ExecRoot string `short:"r" long:"exec_root" description:"Root directory to resolve and run the compile under" default:"."`
	Config   string `short:"c" long:"config" description:"Path to the toolchain's gcfg configuration file" required:"true"`
	Label    string `short:"l" long:"label" description:"Label of the owning rule, used by per-file copts and diagnostics" required:"true"`
	Source   string `short:"s" long:"source" description:"Exec path of the source file to compile" required:"true"`
	Output   string `short:"o" long:"output" description:"Exec path of the compiled object to produce" required:"true"`

	IncludeDirs []string `short:"I" long:"include_dir" description:"Directory to search with -I"`
	Defines     []string `short:"D" long:"define" description:"Preprocessor define to pass with -D"`

	Verbosity       int  `short:"v" long:"verbosity" description:"Logging verbosity, 0-5" default:"1"`
	DescribeOnly    bool `long:"describe" description:"Print the command line and declared inclusion policy without compiling"`
	ValidationDebug bool `long:"validation_debug" description:"Log a summary of the declared-inclusion check for every compile"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
	cli.InitLogging(logging.Level(opts.Verbosity))
	cc.SetValidationDebug(opts.ValidationDebug)

	if err := run(); err != nil {
		log.Fatalf("%s", err)
	}
}

func run() error {
	toolchain, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("loading toolchain config: %w", err)
	}

	source := fs.NewSourceArtifact(fs.NewPath(opts.Source))
	output := fs.NewDerivedArtifact(fs.Root{Kind: fs.DerivedRootKind}, fs.NewPath(opts.Output))

	mandatoryInputs := fs.NewArtifactSet()
	mandatoryInputs.Add(source)

	var includeDirs []fs.Path
	for _, d := range opts.IncludeDirs {
		includeDirs = append(includeDirs, fs.NewPath(d))
	}

	action := cc.New(
		opts.Label, opts.Label, source,
		mandatoryInputs, fs.NewArtifactSet(), output,
		toolchain,
		cc.CompilationContext{
			IncludeDirs: includeDirs,
			Defines:     opts.Defines,
		},
		compileActionClassID,
	)
	dotd := fs.NewDotdArtifact(fs.NewSourceArtifact(fs.NewPath(opts.Output + ".d")))
	action.Dotd = &dotd

	if opts.DescribeOnly {
		desc, err := action.DescribeKey()
		if err != nil {
			return err
		}
		fmt.Print(desc)
		return nil
	}

	executor := exec.NewLocalExecutor(opts.ExecRoot, 0)
	return action.Execute(cc.ExecuteContext{
		Executor:    executor,
		Resolver:    exec.DiskArtifactResolver{ExecRoot: opts.ExecRoot},
		SubPackages: exec.FileSystemSubPackages{ExecRoot: opts.ExecRoot},
		EventSink:   cli.LogEventHandler{},
		ExecRoot:    opts.ExecRoot,
	})
}
