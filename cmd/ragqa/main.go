package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragqa/internal/chat"
	"ragqa/internal/config"
	"ragqa/internal/logging"
	"ragqa/internal/tui"
)

type options struct {
	configPath string
	corpusPath string
	logLevel   string
	plain      bool
	topK       int
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "ragqa",
		Short:         "Answer questions from a spreadsheet knowledge base",
		Long:          "ragqa retrieves the most relevant rows of a corpus and asks a language model to answer with them as context.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd.Context(), opts, in, out, errOut)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml or ~/.config/ragqa/config.yaml)")
	root.PersistentFlags().StringVar(&opts.corpusPath, "corpus", "", "corpus file (.xlsx, .csv, .tsv); overrides corpus.path")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error; overrides log.level")
	root.Flags().BoolVar(&opts.plain, "plain", false, "line-oriented console instead of the TUI")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the documents closest to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), opts, args[0], out, errOut)
		},
	}
	search.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "number of documents (default: retriever.top_k)")

	ask := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a single question and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), opts, args[0], out, errOut)
		},
	}
	root.AddCommand(search, ask)
	return root
}

func loadConfig(opts *options) (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.corpusPath != "" {
		cfg.Corpus.Path = opts.corpusPath
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

// startup loads config and builds the pipeline, logging any failure.
func startup(ctx context.Context, opts *options, logOut io.Writer, withGenerator bool) (*app, *config.AppConfig, *slog.Logger, error) {
	cfg, err := loadStartupConfig(opts, logOut)
	if err != nil {
		return nil, nil, nil, err
	}
	a, logger, err := build(ctx, cfg, logOut, withGenerator)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, cfg, logger, nil
}

func loadStartupConfig(opts *options, logOut io.Writer) (*config.AppConfig, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		logging.New(logOut, "info").Error("startup failed", "error", err)
		return nil, err
	}
	return cfg, nil
}

func build(ctx context.Context, cfg *config.AppConfig, logOut io.Writer, withGenerator bool) (*app, *slog.Logger, error) {
	logger := logging.New(logOut, cfg.Log.Level)
	a, err := newApp(ctx, cfg, logger, withGenerator)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return nil, nil, err
	}
	return a, logger, nil
}

func runLoop(ctx context.Context, opts *options, in io.Reader, out, errOut io.Writer) error {
	cfg, err := loadStartupConfig(opts, errOut)
	if err != nil {
		return err
	}
	logOut := errOut
	if opts.plain {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	} else {
		f, err := openTUILog(cfg)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	a, logger, err := build(ctx, cfg, logOut, true)
	if err != nil {
		return err
	}
	defer a.Close()

	session := chat.NewSession(a.composer, logger)
	if opts.plain {
		return chat.NewConsole(session, in, out, chat.ConsoleOptions{
			PreviewChars: cfg.Composer.PreviewChars,
			Banner:       a.summary,
			Logger:       logger,
		}).Run(ctx)
	}
	p := tea.NewProgram(tui.New(ctx, session, a.summary), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		logger.Error("tui failed", "error", err)
		return err
	}
	return nil
}

// openTUILog picks log.file, or a file in the temp dir, since the TUI owns
// the terminal.
func openTUILog(cfg *config.AppConfig) (*os.File, error) {
	return tea.LogToFile(tuiLogPath(cfg), "")
}

func tuiLogPath(cfg *config.AppConfig) string {
	if cfg.Log.File != "" {
		return cfg.Log.File
	}
	return filepath.Join(os.TempDir(), "ragqa.log")
}

func runSearch(ctx context.Context, opts *options, query string, out, errOut io.Writer) error {
	a, cfg, _, err := startup(ctx, opts, errOut, false)
	if err != nil {
		return err
	}
	defer a.Close()
	k := opts.topK
	if k == 0 {
		k = cfg.Retriever.TopK
	}
	results, err := a.service.Retrieve(ctx, query, k)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, a.summary)
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%d] distance=%.4f  %s\n", i+1, r.Document.Position, r.Distance, chat.Preview(r.Document.Text, cfg.Composer.PreviewChars))
	}
	return nil
}

func runAsk(ctx context.Context, opts *options, query string, out, errOut io.Writer) error {
	a, cfg, logger, err := startup(ctx, opts, errOut, true)
	if err != nil {
		return err
	}
	defer a.Close()
	session := chat.NewSession(a.composer, logger)
	console := chat.NewConsole(session, nil, out, chat.ConsoleOptions{
		PreviewChars: cfg.Composer.PreviewChars,
		Logger:       logger,
	})
	return console.Once(ctx, query)
}
