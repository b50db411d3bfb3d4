package main

import (
	"log"
	"net/http"
	"os"

	"tontine_manager/internal/config"
	"tontine_manager/internal/controllers"
	"tontine_manager/internal/logger"
	"tontine_manager/internal/middleware"
	"tontine_manager/internal/models"
	"tontine_manager/internal/momo"
	"tontine_manager/internal/notify"
	"tontine_manager/internal/routes"
	"tontine_manager/internal/tontine"
)

func operatorConfig(prefix string) momo.OperatorConfig {
	return momo.OperatorConfig{
		APIKey:      os.Getenv(prefix + "_API_KEY"),
		APISecret:   os.Getenv(prefix + "_API_SECRET"),
		CallbackURL: os.Getenv(prefix + "_CALLBACK_URL"),
		BaseURL:     os.Getenv(prefix + "_BASE_URL"),
	}
}

func main() {
	// Initialize structured logging to file
	logger.Setup()

	// Connect to the database
	config.InitDB()

	// Mobile-money operators; unconfigured ones are absent from the table
	providers := momo.NewRegistry(
		operatorConfig("ORANGE"),
		operatorConfig("MTN"),
		operatorConfig("WAVE"),
		operatorConfig("MOOV"),
	)

	// Notification dispatcher with one worker draining the queue
	senders := map[models.NotificationChannel]notify.Sender{
		models.ChannelInApp: notify.InAppSender{},
		models.ChannelSMS:   &notify.SMSSender{APIKey: os.Getenv("SMS_API_KEY"), SenderID: os.Getenv("SMS_SENDER_ID")},
		models.ChannelEmail: &notify.EmailSender{Host: os.Getenv("SMTP_HOST"), From: os.Getenv("SMTP_FROM")},
	}
	dispatcher := notify.NewDispatcher(config.DB, senders, 256)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Domain engines
	registry := tontine.NewRegistry(config.DB, dispatcher)
	payouts := tontine.NewPayoutEngine(config.DB, dispatcher)
	sessions := tontine.NewSessionEngine(config.DB, dispatcher)
	payments := tontine.NewPaymentEngine(config.DB, dispatcher, providers)
	controllers.Setup(registry, payouts, sessions, payments, dispatcher)

	// Setup Gin router
	r := routes.SetupRouter()

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("🚀 Server running at :" + port)
	log.Fatal(http.ListenAndServe("0.0.0.0:"+port, handler))
}
