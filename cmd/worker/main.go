package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/DevOwais28/Expense-Tracker/internal/cache"
	"github.com/DevOwais28/Expense-Tracker/internal/config"
	"github.com/DevOwais28/Expense-Tracker/internal/log"
	"github.com/DevOwais28/Expense-Tracker/internal/mail"
	"github.com/DevOwais28/Expense-Tracker/internal/queue"
	"github.com/DevOwais28/Expense-Tracker/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment).With().Str("component", "mail-worker").Logger()

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	var sender mail.Sender = mail.NewLogSender(logger)
	if cfg.Mail.SMTPAddr != "" {
		sender = mail.NewSMTPSender(cfg.Mail.SMTPAddr, cfg.Mail.From, cfg.Mail.SMTPUsername, cfg.Mail.SMTPPassword)
	} else {
		logger.Warn().Msg("mail.smtpaddr not set, messages will only be logged")
	}

	processor := tasks.NewProcessor(sender, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Mail.Stream,
		cfg.Mail.Group,
		cfg.Mail.Consumer,
		cfg.Mail.ClaimInterval,
		logger,
		processor,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
