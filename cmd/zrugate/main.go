package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zrupay/zrugate/gateway"
	"golang.org/x/exp/slog"
)

var flagConfig = flag.String("config", os.Getenv("ZRU_CONFIG"), "path to YAML config (optional)")

func main() {
	flag.Parse()

	logger := slog.Default()

	cfg, err := gateway.LoadConfig(*flagConfig)
	if err != nil {
		fail("%v", err)
	}

	app := gateway.NewApp(logger, cfg)
	if err := app.Start(); err != nil {
		fail("starting app: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
