package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"nhstac/internal/app"
	"nhstac/pkg/contracts"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile string
	dataDir    string
	focusFY    string
	topN       int
	addr       string

	logOutput io.Writer
}

func (f *globalFlags) options() app.Options {
	return app.Options{
		ConfigFile: f.configFile,
		DataDir:    f.dataDir,
		FocusFY:    f.focusFY,
		TopN:       f.topN,
		Addr:       f.addr,
		LogOutput:  f.logOutput,
	}
}

// withApp builds the application for one command and always closes it
func (f *globalFlags) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) (err error) {
	a, err := app.New(f.options())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(cmd.Context())); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(cmd.Context(), a)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(nil)
}

func newRootCommand(logOutput io.Writer) *cobra.Command {
	flags := &globalFlags{logOutput: logOutput}

	rootCmd := &cobra.Command{
		Use:     "tac",
		Short:   "NHS TAC workbook ETL and descriptive analytics",
		Version: contracts.GetFullVersionString(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default: config.yaml or configs/config.yaml when present)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory holding raw/, reference/, canonical/, mappings/ and analysis/")
	pf.StringVar(&flags.focusFY, "fy", "", "financial year for single-year analyses, e.g. 2023-24")
	pf.IntVar(&flags.topN, "top-n", 0, "number of lines kept by the top lines analysis")

	rootCmd.AddCommand(
		newExtractCommand(flags),
		newDimsCommand(flags),
		newAnalyzeCommand(flags),
		newPipelineCommand(flags),
		newServeCommand(flags),
		newInspectCommand(flags),
		newRunsCommand(flags),
	)

	return rootCmd
}
