package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"TasteClient/internal/domain"
	"TasteClient/internal/infrastructure/scheduler"
	"TasteClient/internal/usecase"
)

const usage = `usage: tasteai <command> [flags]

commands:
  login -u USER [-p PASSWORD]   sign in and keep the session
  logout                        forget the stored session
  whoami                        show whether a session is active
  score FILE                    score one image
  batch FILE...                 score several images in one request
  trends [-watch DURATION]      show current trends
  predict [-category NAME]      show predicted trends
  health [-detailed]            check the service
  metrics                       dump service metrics
`

type command func(ctx context.Context, a *Application, args []string) error

var commands = map[string]command{
	"login":   runLogin,
	"logout":  runLogout,
	"whoami":  runWhoami,
	"score":   runScore,
	"batch":   runBatch,
	"trends":  runTrends,
	"predict": runPredict,
	"health":  runHealth,
	"metrics": runMetrics,
}

// Run executes one CLI command.
func (a *Application) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		_, _ = io.WriteString(a.out, usage)
		if len(args) == 0 {
			return ErrUsage
		}
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		_, _ = io.WriteString(a.out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	if err := cmd(ctx, a, args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		return err
	}
	return nil
}

func (a *Application) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func runLogin(ctx context.Context, a *Application, args []string) error {
	fs := a.flags("login")
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password (or TASTE_AI_PASSWORD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *pass == "" {
		*pass = os.Getenv("TASTE_AI_PASSWORD")
	}
	if *user == "" || *pass == "" {
		return fmt.Errorf("%w: login needs -u and -p", ErrUsage)
	}

	resp, err := a.api.Auth.Login(ctx, *user, *pass)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.AccessToken == "" {
		_, _ = fmt.Fprintln(a.out, "login accepted but no token was issued; still signed out")
		return nil
	}
	_, _ = fmt.Fprintf(a.out, "signed in as %s\n", *user)
	return nil
}

func runLogout(ctx context.Context, a *Application, _ []string) error {
	if err := a.api.Auth.Logout(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, "signed out")
	return nil
}

func runWhoami(_ context.Context, a *Application, _ []string) error {
	token, ok := a.store.Current()
	if !ok {
		_, _ = fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	_, _ = fmt.Fprintf(a.out, "signed in (token %s) against %s\n", token, a.transport.BaseURL())
	return nil
}

func runScore(ctx context.Context, a *Application, args []string) error {
	fs := a.flags("score")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: score needs a FILE", ErrUsage)
	}

	files, err := loadImages(fs.Args())
	if err != nil {
		return err
	}

	a.workflow.Subscribe(func(s usecase.Snapshot) {
		a.logger.Debug("workflow", "state", s.State, "seq", s.Seq, "file", s.File)
	})

	if err := a.workflow.Select(ctx, files); err != nil {
		snap := a.workflow.Snapshot()
		if snap.State == usecase.StateFailed {
			_, _ = fmt.Fprintln(a.out, snap.Message)
			return fmt.Errorf("score %s: %w", snap.File, err)
		}
		return err
	}

	snap := a.workflow.Snapshot()
	if snap.Result == nil {
		return nil
	}
	for _, f := range files {
		if f.Name == snap.File {
			_, _ = fmt.Fprintf(a.out, "%s (%s)\n", f.Name, humanize.IBytes(uint64(f.Size())))
			break
		}
	}
	writeResult(a.out, *snap.Result)
	return nil
}

func writeResult(w io.Writer, r domain.ScoringResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "aesthetic score\t%.2f\n", r.AestheticScore)
	_, _ = fmt.Fprintf(tw, "confidence\t%.2f\n", r.Confidence)
	_, _ = fmt.Fprintf(tw, "trend score\t%.2f\n", r.TrendAnalysis.TrendScore)
	_, _ = fmt.Fprintf(tw, "viral potential\t%.2f\n", r.TrendAnalysis.ViralPotential)
	_, _ = fmt.Fprintf(tw, "market appeal\t%.2f\n", r.TrendAnalysis.MarketAppeal)
	if r.Metadata != nil && r.Metadata.Format != "" {
		_, _ = fmt.Fprintf(tw, "format\t%s %v\n", r.Metadata.Format, r.Metadata.ImageSize)
	}
	_ = tw.Flush()
}

func runBatch(ctx context.Context, a *Application, args []string) error {
	fs := a.flags("batch")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: batch needs at least one FILE", ErrUsage)
	}

	files, err := loadImages(fs.Args())
	if err != nil {
		return err
	}

	var total uint64
	for _, f := range files {
		total += uint64(f.Size())
	}
	a.logger.Info("submitting batch", "files", len(files), "size", humanize.IBytes(total))

	items, err := a.api.Aesthetic.BatchScore(ctx, files)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FILE\tSTATUS\tSCORE")
	failed := 0
	for _, item := range items {
		if !item.Succeeded() {
			failed++
			_, _ = fmt.Fprintf(tw, "%s\terror\t%s\n", item.Filename, item.Error)
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\tsuccess\t%.2f\n", item.Filename, item.AestheticScore)
	}
	_ = tw.Flush()

	if failed > 0 {
		_, _ = fmt.Fprintf(a.out, "%d of %d images could not be scored\n", failed, len(items))
	}
	return nil
}

func runTrends(ctx context.Context, a *Application, args []string) error {
	fs := a.flags("trends")
	watch := fs.Duration("watch", 0, "refresh interval; 0 prints once")
	if err := parse(fs, args); err != nil {
		return err
	}

	render := func(at time.Time, trends []domain.Trend) {
		if *watch > 0 {
			_, _ = fmt.Fprintf(a.out, "-- %s\n", at.Format(time.TimeOnly))
		}
		writeTrends(a.out, trends)
	}

	if *watch <= 0 {
		render(time.Now(), a.trends.Dashboard(ctx))
		return nil
	}

	watcher := usecase.NewTrendWatcher(scheduler.NewTickerScheduler(*watch), a.trends, render)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.API.Timeout)
	defer cancel()
	return watcher.Stop(stopCtx)
}

func runPredict(ctx context.Context, a *Application, args []string) error {
	fs := a.flags("predict")
	category := fs.String("category", a.cfg.Trends.DefaultCategory, "trend category")
	if err := parse(fs, args); err != nil {
		return err
	}

	trends, err := a.trends.Predict(ctx, *category)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	writeTrends(a.out, trends)
	return nil
}

func writeTrends(w io.Writer, trends []domain.Trend) {
	if len(trends) == 0 {
		_, _ = fmt.Fprintln(w, "no trends available")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tCATEGORY\tSCORE\tMOMENTUM\tPEAK")
	for _, t := range trends {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", t.Name, t.Category, t.Score, t.Momentum, t.PeakEstimate)
	}
	_ = tw.Flush()
}

func runHealth(ctx context.Context, a *Application, args []string) error {
	fs := a.flags("health")
	detailed := fs.Bool("detailed", false, "include component status")
	if err := parse(fs, args); err != nil {
		return err
	}

	if !*detailed {
		h, err := a.api.System.Health(ctx)
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		_, _ = fmt.Fprintf(a.out, "%s %s\n", h.Status, h.Version)
		return nil
	}

	h, err := a.api.System.DetailedHealth(ctx)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	_, _ = fmt.Fprintf(a.out, "%s %s\n", h.Status, h.Version)
	names := make([]string, 0, len(h.Components))
	for name := range h.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(a.out, "  %s: %s\n", name, h.Components[name])
	}
	return nil
}

func runMetrics(ctx context.Context, a *Application, _ []string) error {
	m, err := a.api.System.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// Describe renders err for the terminal, keeping the error kind visible.
func Describe(err error) string {
	if errors.Is(err, ErrUsage) {
		return err.Error()
	}
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindUnknown {
		return msg
	}
	return fmt.Sprintf("%s [%s]", strings.TrimSpace(msg), kind)
}
