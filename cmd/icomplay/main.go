package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	linac "github.com/iwtcode/icomService"
	"github.com/iwtcode/icomService/pkg/sequencer"
	"github.com/joho/godotenv"
)

func main() {
	mu := flag.Float64("mu", 0, "подменить MU каждого поля (0 - без подмены)")
	doseRate := flag.Float64("doserate", 0, "подменить мощность дозы (0 - без подмены)")
	patientID := flag.String("ptid", "", "подменить ID пациента")
	flag.Parse()

	if err := godotenv.Load("./.env"); err != nil {
		log.Printf("Warning: Could not load .env file. Using default values or environment variables: %v", err)
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: icomplay [-mu N] [-doserate N] [-ptid ID] field.efs|plan.dcm...")
		os.Exit(2)
	}

	cfg := linac.Load()
	client, err := linac.New(cfg)
	if err != nil {
		log.Fatalf("Не удалось создать клиент: %v", err)
	}
	logger := client.GetLogger()
	logger.Infof("Конфигурация загружена: IP=%s, LINAC=%s", cfg.IP, cfg.MachineName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = client.Connect(connectCtx)
	cancel()
	if err != nil {
		log.Fatalf("Ошибка подключения к %s: %v", cfg.IP, err)
	}
	defer client.Close()

	var ov sequencer.Overrides
	if *mu > 0 {
		ov.MU = mu
	}
	if *doseRate > 0 {
		ov.DoseRate = doseRate
	}
	if *patientID != "" {
		ov.PatientID = patientID
	}
	if err := client.EnqueueFiles(flag.Args(), ov); err != nil {
		logger.WithError(err).Warn("Часть файлов не добавлена в очередь")
	}

	session := client.Session()
	playlist := session.Playlist()
	if playlist.Len() == 0 {
		log.Fatal("Очередь пуста")
	}

	for {
		changed := playlist.Changed()
		fmt.Print(playlist.String())
		if playlist.Len() == 0 {
			logger.Info("Все поля доставлены")
			return
		}
		select {
		case <-ctx.Done():
			logger.Warn("Прервано оператором")
			if err := client.Stop(); err != nil {
				logger.WithError(err).Error("Stop failed")
			}
			return
		case <-session.Done():
			if err := session.Err(); err != nil {
				log.Fatalf("Соединение с LINAC потеряно: %v", err)
			}
			return
		case <-changed:
		}
	}
}
