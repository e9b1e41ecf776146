package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hsafari99/bell/internal/commerce"
	h "github.com/hsafari99/bell/internal/http"
	"github.com/hsafari99/bell/internal/sequencer"
	"github.com/hsafari99/bell/internal/service"
	"github.com/hsafari99/bell/internal/store"
	"github.com/hsafari99/bell/internal/sweeper"
	"github.com/hsafari99/bell/internal/tax"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CheckoutGrace   time.Duration
	SessionTTL      time.Duration
	Sweep           sweeper.Config
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CheckoutGrace:   getDurationEnv("CHECKOUT_GRACE", service.DefaultCheckoutGrace),
		SessionTTL:      getDurationEnv("SESSION_TTL", commerce.DefaultSessionTTL),
		Sweep: sweeper.Config{
			Interval:          getDurationEnv("SWEEP_INTERVAL", sweeper.DefaultInterval),
			InProgressTimeout: getDurationEnv("SWEEP_IN_PROGRESS_TIMEOUT", sweeper.DefaultInProgressTimeout),
			FailedRetention:   getDurationEnv("SWEEP_FAILED_RETENTION", sweeper.DefaultFailedRetention),
			IdleTTL:           getDurationEnv("SWEEP_IDLE_TTL", sweeper.DefaultIdleTTL),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()
	var wg sync.WaitGroup

	// Stores, commerce provider behind a circuit breaker, tax calculator
	carts := store.NewMemoryCartStore()
	sessions := store.NewMemorySessionStore()
	provider := commerce.NewBreakerProvider(commerce.NewMemoryProvider(cfg.SessionTTL))
	calculator := tax.NewScheduleCalculator()
	seq := sequencer.New()

	cartService := service.NewCartService(seq, carts, sessions, provider, calculator,
		service.WithCheckoutGrace(cfg.CheckoutGrace))

	// Start background sweeper
	sweep := sweeper.New(carts, sessions, cfg.Sweep)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweep.Run(sweepCtx)
	}()

	cartHandler := h.NewCartHandler(cartService, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(cartService, cfg.RequestTimeout)
	adminHandler := h.NewAdminHandler(sweep)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.MockAuthMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Put("/tax-context", cartHandler.SetTaxContext)
			r.Get("/summary", cartHandler.GetSummary)
		})
		r.Post("/checkout", checkoutHandler.Checkout)
		r.Post("/admin/sweep", adminHandler.Sweep)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "bell"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("bell listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	// Stop the sweeper and give it until the shutdown deadline to finish
	sweepCancel()
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Println("sweeper stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("sweeper didn't stop in time")
	}

	log.Println("bell stopped")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
