package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"court-booking-server/booking"
	"court-booking-server/config"
	"court-booking-server/database"
	"court-booking-server/jobs"
	"court-booking-server/logging"
	"court-booking-server/middleware"
	"court-booking-server/mq"
	"court-booking-server/payments"
	"court-booking-server/routes"
	"court-booking-server/services"
	"court-booking-server/store"
	"court-booking-server/store/memory"
	ws "court-booking-server/websocket"
)

type stores struct {
	bookings store.Bookings
	courts   store.Courts
	users    store.Users
	invoices store.Invoices
}

// openStores picks the persistence backend named by STORE_DRIVER.
func openStores(cfg config.DatabaseConfig, logger *logrus.Logger) (stores, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("⚠️ Using in-memory store, data is lost on restart")
		db := memory.New()
		return stores{bookings: db.Bookings(), courts: db.Courts(), users: db.Users(), invoices: db.Invoices()}, nil
	case "postgres":
		if err := database.Initialize(cfg, logger); err != nil {
			return stores{}, err
		}
		db := database.GetDB()
		return stores{
			bookings: database.NewBookingStore(db),
			courts:   database.NewCourtStore(db),
			users:    database.NewUserStore(db),
			invoices: database.NewInvoiceStore(db),
		}, nil
	default:
		return stores{}, errors.New("unknown STORE_DRIVER " + cfg.Driver)
	}
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if err := config.Load(); err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	cfg := config.AppConfig
	logger := logging.New(cfg.LogLevel)

	rules, err := cfg.Rules()
	if err != nil {
		logger.WithError(err).Fatal("Invalid booking rules")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}
	if cfg.Database.SeedCourts {
		if err := seedCourts(ctx, st.courts, logger); err != nil {
			logger.WithError(err).Fatal("Failed to seed courts")
		}
	}

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	// Realtime fan-out always goes to sockets; the broker is optional.
	notifier := services.Fanout{hub}
	var consumer *mq.Consumer
	if cfg.AMQP.URL != "" {
		publisher, err := mq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.EventsExchange)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect event publisher")
		}
		defer publisher.Close()
		bridge := mq.NewEventBridge(publisher, logger)
		go bridge.Run(ctx)
		notifier = append(notifier, bridge)

		consumer, err = mq.NewConsumer(cfg.AMQP.URL, cfg.AMQP.PaymentsExchange, cfg.AMQP.SettlementQueue, []string{mq.KeyPaymentSettled})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect settlement consumer")
		}
		defer consumer.Close()
		logger.WithField("exchange", cfg.AMQP.EventsExchange).Info("📨 Broker bridge enabled")
	}

	machine := booking.NewMachine(rules)
	invoices := services.NewInvoiceService(st.invoices, st.bookings, machine, logger)
	bookings := services.NewBookingService(st.bookings, st.courts, machine, notifier, logger).WithInvoicer(invoices)
	auth := services.NewAuthService(st.users, logger)

	if consumer != nil {
		msgs, err := consumer.Deliveries(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Failed to start settlement consumer")
		}
		go mq.NewSettlementConsumer(bookings, logger).Run(ctx, msgs)
	}

	vnpay := payments.NewVNPay(cfg.VNPay, rules.Location)
	if !vnpay.Enabled() {
		logger.Warn("⚠️ VNPay credentials missing, online payment is disabled")
	}

	limiter := middleware.NewRateLimiter()
	cleanup := jobs.NewLimiterCleanupJob(limiter, 10*time.Minute, time.Hour, logger)
	cleanup.Start()
	defer cleanup.Stop()

	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	origins := cfg.Server.Origins()
	router := routes.NewRouter(&routes.API{
		Bookings: bookings,
		Invoices: invoices,
		Auth:     auth,
		Courts:   st.courts,
		Users:    st.users,
		VNPay:    vnpay,
		Hub:      hub,
		Upgrader: ws.NewUpgrader(origins),
		Limiter:  limiter,
		Origins:  origins,
		Log:      logger,
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("🚀 Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("❌ Graceful shutdown failed")
	}
}
