// Command diabetes-risk trains and evaluates the early-stage diabetes risk
// classifier on a CSV of patient symptoms.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
