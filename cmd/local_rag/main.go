package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// cancelled on interrupt or termination
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// post-run hooks are skipped when a command fails
		_ = closeApp()
		log.Fatalf("local_rag: %v", err)
	}
}
