package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assetmigration/pkg/app"
	"assetmigration/pkg/config"
	"assetmigration/pkg/locator"
	"assetmigration/pkg/models"
)

var (
	configFile  string
	urlsFile    string
	dryRun      bool
	continueJob bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate assets from retired storage accounts to the active account",
	Long: `Discovers asset URLs still served by retired storage accounts, copies
each asset to the active destination account under the same public id and
records progress in a checkpoint so interrupted runs resume where they
stopped. Destination credentials are read from the environment
(` + config.EnvDestAccount + `, ` + config.EnvDestAPIKey + `, ` + config.EnvDestAPISecret + `).`,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.Flags().StringVar(&urlsFile, "urls-file", "", "newline-delimited URL list instead of database discovery")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list intended actions without transferring anything")
	rootCmd.Flags().BoolVar(&continueJob, "continue", false, "resume the previous interrupted run")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug/info/warn/error)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	var opts []app.Option
	if urlsFile != "" {
		urls, err := readURLList(urlsFile)
		if err != nil {
			return err
		}
		opts = append(opts, app.WithLocator(locator.NewStatic(urls, cfg.RetiredAccounts)))
	}

	a, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refs, err := a.Locator.Locate(ctx)
	if err != nil {
		return fmt.Errorf("asset discovery failed: %w", err)
	}

	if dryRun {
		printPlan(refs)
		return nil
	}

	if continueJob {
		return resume(ctx, a, refs)
	}

	jobID, err := a.Controller.Start(ctx, cfg.Credentials(), refs)
	if err != nil {
		return err
	}
	a.Log.Info("migration running", zap.String("job_id", jobID), zap.Int("total", len(refs)))

	return await(ctx, a)
}

// resume is a fresh start against the retained checkpoint: finished assets
// resolve to skips without network calls, so only unresolved items transfer.
func resume(ctx context.Context, a *app.App, refs []models.AssetRef) error {
	jobID, err := a.Controller.Start(ctx, a.Cfg.Credentials(), refs)
	if err != nil {
		return err
	}
	a.Log.Info("resuming migration", zap.String("job_id", jobID), zap.Int("candidates", len(refs)))
	return await(ctx, a)
}

func await(ctx context.Context, a *app.App) error {
	done := make(chan struct{})
	go func() {
		a.Controller.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		a.Log.Warn("interrupt received, finishing the in-flight asset")
		if err := a.Controller.Cancel(); err == nil {
			<-done
		}
	case <-done:
	}

	status := a.Controller.Status()
	fmt.Printf("status=%s total=%d copied=%d failed=%d skipped=%d\n",
		status.Status, status.Total, status.Copied, status.Failed, status.Skipped)
	for _, itemErr := range status.RecentErrors {
		fmt.Printf("  error: %s: %s\n", itemErr.Asset.SourceURL, itemErr.Message)
	}

	if status.Status != models.StatusCompleted {
		return fmt.Errorf("migration finished with status %s", status.Status)
	}
	return nil
}

func printPlan(refs []models.AssetRef) {
	copies, failures := 0, 0
	for _, ref := range refs {
		if ref.PublicID == "" {
			failures++
			fmt.Printf("FAIL  %s (source URL could not be decomposed)\n", ref.SourceURL)
			continue
		}
		copies++
		fmt.Printf("COPY  %s/%s <- %s\n", ref.ResourceType, ref.PublicID, ref.SourceURL)
	}
	fmt.Printf("dry run: %d to copy, %d undecomposable, 0 transfers performed\n", copies, failures)
}

func readURLList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
