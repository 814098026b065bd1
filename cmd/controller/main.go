package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("xarxes-ctrl %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(-1)
	}

	level := "info"
	if cfg.debug {
		level = "debug"
	}
	l := setupLogger(cfg.logFormat, level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
	}()

	os.Exit(run(ctx, cancel, cfg, l))
}
