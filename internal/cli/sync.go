package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"wordpress-sync/internal/config"
	"wordpress-sync/internal/core/manifest"
	"wordpress-sync/internal/core/sync"
	"wordpress-sync/internal/infra/logx"
	"wordpress-sync/internal/tui"
	"wordpress-sync/internal/wp"
)

type syncFlags struct {
	source       string
	dest         string
	kinds        string
	includePages []int
	includePosts []int
	includeMedia []int
	staticDir    string
	plain        bool
}

func newSyncCmd() *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a content sync from a source instance or a static manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.source, "source", "", "source profile name (omit with --static)")
	cmd.Flags().StringVar(&f.dest, "dest", "", "destination profile name")
	cmd.Flags().StringVar(&f.kinds, "kinds", "", "comma-separated kinds (default: all)")
	cmd.Flags().IntSliceVar(&f.includePages, "include-pages", nil, "restrict pages to these source IDs (ancestors added automatically)")
	cmd.Flags().IntSliceVar(&f.includePosts, "include-posts", nil, "restrict posts to these source IDs")
	cmd.Flags().IntSliceVar(&f.includeMedia, "include-media", nil, "always include these media IDs")
	cmd.Flags().StringVar(&f.staticDir, "static", "", "sync from a static manifest directory instead of a live source")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "plain log output, no terminal UI")
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

func runSync(ctx context.Context, f syncFlags) error {
	kinds, err := sync.ParseKinds(f.kinds)
	if err != nil {
		return err
	}
	if f.staticDir == "" && f.source == "" {
		return errors.New("either --source or --static is required")
	}

	path, err := config.DefaultPath()
	if err != nil {
		return err
	}
	profiles, err := config.LoadProfiles(path)
	if err != nil {
		return err
	}

	destCreds, err := resolveProfile(profiles, f.dest)
	if err != nil {
		return err
	}
	logx.RegisterSecret(destCreds.Password)

	var src sync.SourceAPI
	if f.staticDir == "" {
		srcCreds, err := resolveProfile(profiles, f.source)
		if err != nil {
			return err
		}
		if srcCreds.Origin() == destCreds.Origin() {
			return fmt.Errorf("source and destination are the same instance (%s)", destCreds.Origin())
		}
		logx.RegisterSecret(srcCreds.Password)
		src = wp.NewWithOptions(srcCreds, settings.TransportOptions())
	}
	dst := wp.NewWithOptions(destCreds, settings.TransportOptions())

	opts := sync.RunOptions{
		Kinds:        kinds,
		IncludePages: f.includePages,
		IncludePosts: f.includePosts,
		IncludeMedia: f.includeMedia,
		StaticDir:    f.staticDir,
	}

	interactive := !f.plain && isatty.IsTerminal(os.Stdout.Fd())

	var report *sync.Report
	var runErr error
	if interactive {
		report, runErr = runWithUI(ctx, src, dst, opts)
	} else {
		orch := sync.NewOrchestrator(src, dst, manifest.NewAdapter(), sync.LogNotifier{})
		report, runErr = orch.Run(ctx, opts)
	}
	if report != nil {
		fmt.Print(report.Render(f.plain || !interactive))
	}
	if runErr != nil {
		return runErr
	}
	if report != nil && report.Failed {
		return errors.New("run failed, see report")
	}
	return nil
}

// runWithUI drives the run from a goroutine while the terminal program owns
// the main loop. Ctrl+C cancels the run context; the program quits after the
// run goroutine reports back.
func runWithUI(ctx context.Context, src sync.SourceAPI, dst sync.DestAPI, opts sync.RunOptions) (*sync.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewModel(cancel))

	type result struct {
		report *sync.Report
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		orch := sync.NewOrchestrator(src, dst, manifest.NewAdapter(), tui.NewNotifier(p))
		r, err := orch.Run(ctx, opts)
		resCh <- result{r, err}
		tui.Finish(p)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		res := <-resCh
		return res.report, err
	}
	res := <-resCh
	return res.report, res.err
}

func resolveProfile(profiles *config.Profiles, name string) (wp.Credentials, error) {
	creds, ok := profiles.Get(name)
	if !ok {
		if hints := profiles.Suggest(name); len(hints) > 0 {
			return wp.Credentials{}, fmt.Errorf("no profile %q, did you mean %s?", name, strings.Join(hints, ", "))
		}
		return wp.Credentials{}, fmt.Errorf("no profile %q, add one with 'wpsync profiles add'", name)
	}
	if err := creds.Validate(); err != nil {
		return wp.Credentials{}, fmt.Errorf("profile %q: %w", name, err)
	}
	return creds, nil
}
