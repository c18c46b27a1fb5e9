// Package cmd wires the generator stages into the aubio-extgen command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/ardanlabs/aubio-extgen/config"
	"github.com/ardanlabs/aubio-extgen/cpp"
	"github.com/ardanlabs/aubio-extgen/generator"
	"github.com/ardanlabs/aubio-extgen/logutil"
	"github.com/ardanlabs/aubio-extgen/parser"
	"github.com/ardanlabs/aubio-extgen/report"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aubio-extgen",
		Short: "Generate Python extension types from the aubio headers",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().Bool("double", false, "Build for double precision samples")
	rootCmd.PersistentFlags().StringSlice("skip", nil, "Objects to leave out (replaces the default list)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")

	cobra.EnableCommandSorting = false

	generateCmd := &cobra.Command{
		Use:   "generate [header] [output]",
		Args:  cobra.MaximumNArgs(2),
		Short: "Write the extension sources",
		RunE:  GenerateHandler,
	}
	generateCmd.Flags().Bool("overwrite", true, "Regenerate even when the output directory exists")

	scanCmd := &cobra.Command{
		Use:   "scan [header]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Show the objects found in a header",
		Long:  "Show the objects found in a header and log the declarations no object claims",
		RunE:  ScanHandler,
	}

	symbolsCmd := &cobra.Command{
		Use:   "symbols [header]",
		Args:  cobra.MaximumNArgs(1),
		Short: "List the functions attributed to objects",
		RunE:  SymbolsHandler,
	}

	dumpCmd := &cobra.Command{
		Use:   "dump [header]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Print the object model as YAML",
		RunE:  DumpHandler,
	}

	rootCmd.AddCommand(
		generateCmd,
		scanCmd,
		symbolsCmd,
		dumpCmd,
	)

	return rootCmd
}

func GenerateHandler(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, args)
	if err != nil {
		return err
	}

	if len(args) > 1 {
		cfg.OutputDir = args[1]
	}
	if cmd.Flags().Changed("overwrite") {
		cfg.Overwrite, _ = cmd.Flags().GetBool("overwrite")
	}

	opts := generator.Options{
		Header:    cfg.Header,
		OutputDir: cfg.OutputDir,
		UseDouble: cfg.UseDouble,
		Overwrite: cfg.Overwrite,
		Skip:      cfg.SkipSet(),
	}

	src := &lazySource{logger: logger, strategies: cfg.Strategies()}

	sources, err := generator.Generate(cmd.Context(), opts, src, generator.PyObject{}, logger)
	if err != nil {
		return err
	}

	for _, s := range sources {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}

func ScanHandler(cmd *cobra.Command, args []string) error {
	lib, decls, logger, err := scan(cmd, args)
	if err != nil {
		return err
	}

	missing := report.LogMissing(logger, lib, decls)
	logger.Info().Int("objects", lib.Len()).Int("missing", missing).Msg("scan done")

	report.Dump(cmd.OutOrStdout(), lib)
	return nil
}

func SymbolsHandler(cmd *cobra.Command, args []string) error {
	lib, _, _, err := scan(cmd, args)
	if err != nil {
		return err
	}

	names, err := parser.FuncNames(lib.Tree())
	if err != nil {
		return err
	}

	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}

func DumpHandler(cmd *cobra.Command, args []string) error {
	lib, _, _, err := scan(cmd, args)
	if err != nil {
		return err
	}

	return report.WriteYAML(cmd.OutOrStdout(), lib)
}

// setup loads the configuration and applies the command line on top of it.
func setup(cmd *cobra.Command, args []string) (*config.Config, *log.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if len(args) > 0 {
		cfg.Header = args[0]
	}
	if cmd.Flags().Changed("double") {
		cfg.UseDouble, _ = cmd.Flags().GetBool("double")
	}
	if cmd.Flags().Changed("skip") {
		cfg.SkipObjects, _ = cmd.Flags().GetStringSlice("skip")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, logutil.New(cmd.ErrOrStderr(), cfg.Logging.Level), nil
}

func scan(cmd *cobra.Command, args []string) (*parser.Library, []string, *log.Logger, error) {
	cfg, logger, err := setup(cmd, args)
	if err != nil {
		return nil, nil, nil, err
	}

	pp, err := cpp.Find(cmd.Context(), logger, cfg.Strategies()...)
	if err != nil {
		return nil, nil, nil, err
	}

	lib, decls, err := generator.Scan(cmd.Context(), pp, cfg.Header, cfg.UseDouble, cfg.SkipSet())
	if err != nil {
		return nil, nil, nil, err
	}

	return lib, decls, logger, nil
}

// lazySource looks for a compiler only when the header is actually read, so
// a generate run that keeps existing sources needs no compiler at all.
type lazySource struct {
	logger     *log.Logger
	strategies []cpp.Strategy
}

func (s *lazySource) Lines(ctx context.Context, header string, useDouble bool) ([]string, error) {
	pp, err := cpp.Find(ctx, s.logger, s.strategies...)
	if err != nil {
		return nil, err
	}
	return pp.Lines(ctx, header, useDouble)
}
