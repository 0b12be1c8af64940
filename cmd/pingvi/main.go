package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pingvi/pingvi/internal/backup"
	"github.com/pingvi/pingvi/internal/config"
	"github.com/pingvi/pingvi/internal/database"
	"github.com/pingvi/pingvi/internal/logging"
	"github.com/pingvi/pingvi/internal/server"
)

func main() {
	restoreTarget := flag.String("restore", "", `restore a backup and exit: "latest" or a backup id`)
	restorePath := flag.String("restore-to", "restored.db", "destination path for -restore")
	flag.Parse()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	if *restoreTarget != "" {
		if err := restoreBackup(srv.BackupManager(), *restoreTarget, *restorePath, logger); err != nil {
			log.Fatalf("restore failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)

	// Hourly sweep of expired sessions and stale rate-limit windows. Expiry
	// is already enforced at validation; this just keeps the tables small.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(time.Now()); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("session cleanup", "deleted", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("pingvi listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}

	// Stop the workers and let the dispatcher drain its in-flight publish.
	cancel()
	srv.Dispatcher().Wait()
}

// restoreBackup decrypts a snapshot to dst. The server is not started; the
// restored file is left for the operator to swap in.
func restoreBackup(m *backup.Manager, target, dst string, logger *slog.Logger) error {
	var id int64
	var err error
	if target == "latest" {
		id, err = m.RestoreLatest(dst)
	} else {
		id, err = strconv.ParseInt(target, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid backup id %q", target)
		}
		err = m.Restore(id, dst)
	}
	if err != nil {
		return err
	}
	logger.Info("backup restored", "id", id, "path", dst)
	return nil
}
