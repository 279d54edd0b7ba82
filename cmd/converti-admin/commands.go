package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/converti/converti-api/config"
	"github.com/converti/converti-api/internal/adapters/converter"
	"github.com/converti/converti-api/internal/adapters/sweeper"
	"github.com/converti/converti-api/internal/bootstrap"
	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/data"
	"github.com/converti/converti-api/internal/domain/model"
)

const adminCommandTimeout = time.Minute

func runCapabilities(cmdCtx *commandContext, _ []string) error {
	catalog := converter.NewDispatcher(converter.DispatcherOptions{}).Catalog()

	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writef(tw, "CATEGORY\tAVAILABLE\tFORMATS\n"); err != nil {
		return err
	}
	for _, cat := range model.Categories() {
		formats, ok := catalog[cat]
		available := "no"
		if ok {
			available = "yes"
		}
		if err := writef(tw, "%s\t%s\t%s\n", cat, available, strings.Join(formats, ", ")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type sweepOptions struct {
	RetentionDays int
	DryRun        bool
}

func parseSweepFlags(args []string, defaults config.SweeperConfig) (sweepOptions, error) {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := sweepOptions{RetentionDays: defaults.RetentionDays}
	fs.IntVar(&opts.RetentionDays, "retention-days", opts.RetentionDays, "Remove directories older than this many days")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "List the directories that would be removed")

	if err := fs.Parse(args); err != nil {
		return sweepOptions{}, err
	}
	if opts.RetentionDays <= 0 {
		return sweepOptions{}, errors.New("--retention-days must be positive")
	}
	return opts, nil
}

// runSweep sweeps the storage directory from outside the service. This
// process has no job records, so every directory past the window is removed.
func runSweep(cmdCtx *commandContext, args []string) error {
	opts, err := parseSweepFlags(args, cmdCtx.Config.Sweeper)
	if err != nil {
		return err
	}

	storage, err := data.NewJobStorage(cmdCtx.Config.Storage.JobStorageDir)
	if err != nil {
		return fmt.Errorf("open job storage: %w", err)
	}
	sweepCfg := config.SweeperConfig{RetentionDays: opts.RetentionDays}

	if opts.DryRun {
		return printStaleDirs(cmdCtx, storage, time.Now().Add(-sweepCfg.Retention()))
	}

	runner, err := sweeper.NewRunner(sweeper.RunnerOptions{
		Registry: data.NewJobRegistry(data.JobRegistryOptions{}),
		Storage:  storage,
		Config:   sweepCfg,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	res, err := runner.SweepOnce(cmdCtx.Ctx)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "Removed %d job directories in %s\n", res.OrphanDirs, res.Elapsed.Round(time.Millisecond))
}

func printStaleDirs(cmdCtx *commandContext, storage *data.JobStorage, cutoff time.Time) error {
	dirs, err := storage.ListJobDirs()
	if err != nil {
		return err
	}

	stale := 0
	for _, dir := range dirs {
		if !dir.ModTime.Before(cutoff) {
			continue
		}
		stale++
		if err := writef(cmdCtx.Out, "%s\t%s\n", dir.ID, dir.ModTime.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return writef(cmdCtx.Out, "Dry run: %d of %d job directories would be removed\n", stale, len(dirs))
}

type jobStatusOptions struct {
	JobID   string
	RawJSON bool
}

func parseJobStatusFlags(args []string) (jobStatusOptions, error) {
	fs := flag.NewFlagSet("job-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobStatusOptions
	fs.StringVar(&opts.JobID, "job-id", "", "Job ID to inspect (required)")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the raw mirrored JSON")

	if err := fs.Parse(args); err != nil {
		return jobStatusOptions{}, err
	}

	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.JobID == "" {
		return jobStatusOptions{}, errors.New("--job-id is required")
	}
	return opts, nil
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobStatusFlags(args)
	if err != nil {
		return err
	}
	if !cmdCtx.Config.Redis.Enabled {
		return errors.New("redis not configured (set CONVERTI_REDIS_ENABLED=true)")
	}

	client, err := bootstrap.ConnectRedis(cmdCtx.Ctx, bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close redis failed", "error", cerr)
		}
	}()

	return showJobStatus(cmdCtx, data.NewRedisCacheRepo(client), opts)
}

func showJobStatus(cmdCtx *commandContext, cache core.CacheRepository, opts jobStatusOptions) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, adminCommandTimeout)
	defer cancel()

	raw, err := cache.Get(ctx, core.JobCacheKey(opts.JobID))
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("no mirrored status for job %s", opts.JobID)
	}
	if opts.RawJSON {
		return writef(cmdCtx.Out, "%s\n", raw)
	}

	var view model.JobView
	if err := json.Unmarshal(raw, &view); err != nil {
		return fmt.Errorf("decode mirrored job: %w", err)
	}
	return printJobView(cmdCtx, view)
}

func printJobView(cmdCtx *commandContext, view model.JobView) error {
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	lines := [][2]string{
		{"Job", view.JobID},
		{"Status", string(view.Status)},
		{"Category", string(view.Category)},
		{"Target", view.TargetFormat},
		{"Progress", fmt.Sprintf("%.1f%% (%d/%d)", view.Progress, view.ProcessedFiles, view.TotalFiles)},
		{"Created", view.CreatedAt.UTC().Format(time.RFC3339)},
	}
	if view.Error != nil {
		lines = append(lines, [2]string{"Error", *view.Error})
	}
	for _, l := range lines {
		if err := writef(tw, "%s:\t%s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	if err := writef(tw, "\nSOURCE\tOUTPUT\tSTATUS\tERROR\n"); err != nil {
		return err
	}
	for _, r := range view.Results {
		msg := ""
		if r.Error != nil {
			msg = *r.Error
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\n", r.SourceName, r.OutputName, r.Status, msg); err != nil {
			return err
		}
	}
	return tw.Flush()
}
