// Command steward watches a running blobsim through its HTTP API. It triages
// crowd health each cycle and archives or slows the simulation through the
// admin endpoints.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/blob-crowd/internal/steward"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	apiURL := envOrDefault("BLOBSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("BLOBSIM_ADMIN_KEY")
	memoryPath := envOrDefault("STEWARD_MEMORY", "data/steward.json")
	intervalSec := envIntOrDefault("STEWARD_INTERVAL", 60)

	if adminKey == "" {
		slog.Error("BLOBSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("blob steward starting",
		"api_url", apiURL,
		"interval", interval,
		"memory", memoryPath,
	)

	s := steward.New(apiURL, adminKey, memoryPath)

	slog.Info("waiting for blobsim API...")
	waitForAPI(s.Observer)

	runCycle(s)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(s)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Steward stopped.")
			return
		}
	}
}

func runCycle(s *steward.Steward) {
	d, err := s.RunCycle()
	if err != nil {
		slog.Error("steward cycle failed", "error", err)
		return
	}
	if d.Action == steward.ActionNone {
		slog.Info("steward cycle complete, no action")
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(o *steward.Observer) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for !o.Ready() {
		if time.Now().After(deadline) {
			slog.Error("blobsim API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("blobsim not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	slog.Info("blobsim API is ready")
}
