package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/config"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/database"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/notifier"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/repository"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// workerCmd represents the outbox retry worker
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the notification retry worker",
	Long: `Starts the background worker that redelivers notification payloads
whose synchronous relay to the notify service failed. Each undelivered outbox
entry gets one delivery attempt per pass.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewRepository(db)
	notifyClient := notifier.NewClient(
		cfg.Notify.URL,
		time.Duration(cfg.Notify.TimeoutSeconds)*time.Second,
		log,
	)

	svc, err := service.NewService(service.ServiceConfig{
		Repository: repo,
		Notifier:   notifyClient,
		Config:     cfg,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	interval := time.Duration(cfg.Worker.IntervalSeconds) * time.Second

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				log.Debug("Running outbox delivery pass")
				if err := svc.RetryUndelivered(ctx); err != nil {
					log.WithError(err).Error("Outbox delivery pass failed")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()
		log.WithField("interval", interval.String()).Info("Outbox retry worker started")

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	return g.Wait()
}
