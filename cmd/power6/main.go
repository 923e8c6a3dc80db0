package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"power6/internal/api"
	"power6/internal/bot"
	"power6/internal/config"
	"power6/internal/repository"
	"power6/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	taskSvc := service.NewTaskService(taskRepo, cfg.ActiveTaskLimit, time.Now)
	streakSvc := service.NewStreakService(taskRepo, cfg.StreakThreshold, time.Now)
	summarySvc := service.NewSummaryService(taskSvc, streakSvc)

	if !cfg.APIEnabled() && !cfg.BotEnabled() {
		log.Fatal("nothing to run: set HTTP_ADDR or TELEGRAM_TOKEN")
	}

	var wg sync.WaitGroup

	if cfg.APIEnabled() {
		server := api.NewServer(taskSvc, streakSvc, userRepo, cfg.JWTSecret)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx, cfg.HTTPAddr); err != nil {
				log.Printf("api stopped with error: %v", err)
				stop()
			}
		}()
	}

	if cfg.BotEnabled() {
		telegramBot, err := bot.New(cfg.TelegramToken, userRepo, taskSvc, streakSvc, summarySvc, cfg)
		if err != nil {
			log.Fatalf("bot: %v", err)
		}

		scheduler := service.NewSchedulerService(cfg.ReportLocation)
		entry, err := scheduler.ScheduleDaily(cfg.ReportTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("report: %v", err)
			}
		})
		if err != nil {
			log.Fatalf("schedule reports: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("[info] daily report scheduled, next run %s", scheduler.Next(entry).Format(time.RFC3339))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("bot stopped with error: %v", err)
			}
		}()
	}

	log.Println("power6 started.")
	<-ctx.Done()
	wg.Wait()
	log.Println("Shutdown complete.")
}
