package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pwmctl/internal/config"
	"pwmctl/internal/pwm"
)

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	if o.configPath == "" {
		ch := pwm.New(o.chip, o.channel, pwm.WithRoot(o.root))
		if err := runOnce(ch, o); err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("%s period=%dns duty=%dns %s", ch, ch.Period(), ch.DutyCycle(), ch.State())
		return
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if o.root != "" {
		cfg.Root = o.root
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runConfig(ctx, cfg); err != nil {
		cancel()
		log.Fatalf("%v", err)
	}
}
