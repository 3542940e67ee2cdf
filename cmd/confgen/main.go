package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"confgen"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type options struct {
	services   []string
	components []string

	env  string
	node string
	role string

	dataDir       string
	descriptorDir string
	templateDir   string
	outputDir     string

	dryRun   bool
	validate bool
	clean    bool
	noBanner bool
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "confgen",
		Short: "Generate per-deployment configuration files from layered data",
		Long: `confgen resolves configuration for services and components from a layered
data hierarchy (common defaults, per-environment, per-node/role overrides),
walks declared sub-module dependencies, and renders the resolved values into
output files via templates.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := rootCmd.Flags()
	flags.StringSliceVarP(&opts.services, "service", "s", nil, "service to generate (repeatable)")
	flags.StringSliceVarP(&opts.components, "component", "c", nil, "component to generate (repeatable)")
	flags.StringVarP(&opts.env, "env", "e", "", "target environment")
	flags.StringVar(&opts.node, "node", "", "target node (requires --role)")
	flags.StringVar(&opts.role, "role", "", "target role (requires --node)")
	flags.StringVar(&opts.dataDir, "data-dir", "data", "root of the hierarchical data layers")
	flags.StringVar(&opts.descriptorDir, "descriptor-dir", "descriptors", "root of the entity descriptors")
	flags.StringVar(&opts.templateDir, "template-dir", "templates", "template search directory")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "override all declared target directories")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "report target paths and content without writing")
	flags.BoolVar(&opts.validate, "validate", false, "compare generated output against existing files and fail on mismatch")
	flags.BoolVar(&opts.clean, "clean", false, "clear target directories before writing")
	flags.BoolVar(&opts.noBanner, "no-banner", false, "omit the autogenerated-file marker")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.MarkFlagsMutuallyExclusive("service", "component")
	rootCmd.MarkFlagsMutuallyExclusive("env", "node")
	rootCmd.MarkFlagsMutuallyExclusive("env", "role")
	rootCmd.MarkFlagsRequiredTogether("node", "role")
	rootCmd.MarkFlagsMutuallyExclusive("dry-run", "validate")

	return rootCmd
}

func run(opts *options) error {
	if len(opts.services) == 0 && len(opts.components) == 0 {
		return fmt.Errorf("select at least one --service or --component")
	}

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}

	builder := confgen.NewBuilder().
		WithRegistry(confgen.NewDirRegistry(opts.descriptorDir)).
		WithDataSource(confgen.NewLayeredSource(
			opts.dataDir,
			confgen.DefaultHierarchy(),
			confgen.WithSourceLogger(logger),
		)).
		WithTemplateDirs(opts.templateDir).
		WithOutputDir(opts.outputDir).
		WithDryRun(opts.dryRun).
		WithValidateMode(opts.validate).
		WithClean(opts.clean).
		WithBanner(!opts.noBanner).
		WithLogger(logger)

	if opts.env != "" {
		builder = builder.WithEnv(opts.env)
	}
	if opts.node != "" {
		builder = builder.WithNodeRole(opts.node, opts.role)
	}

	gen, err := builder.Build()
	if err != nil {
		return err
	}

	reports, err := gen.Run(confgen.Request{
		Services:   opts.services,
		Components: opts.components,
	})
	if err != nil {
		return err
	}

	if opts.dryRun {
		for _, report := range reports {
			fmt.Printf("--- %s\n%s\n", report.Path, report.Content)
		}
		return nil
	}
	for _, report := range reports {
		logger.Info("generated", "path", report.Path)
	}
	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	return slog.New(handler), nil
}
