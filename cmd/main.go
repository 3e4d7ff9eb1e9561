package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxwin66/companion/internal/config"
	"github.com/maxwin66/companion/pkg/api"
	"github.com/maxwin66/companion/pkg/repository/statestore"
	"github.com/maxwin66/companion/pkg/service/backend"
	"github.com/maxwin66/companion/pkg/service/numbers"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatal(err)
	}

	var store statestore.Store
	if cfg.StateDBPath != "" {
		store, err = statestore.NewSQLiteStore(statestore.Config{DatabasePath: cfg.StateDBPath})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Device state stored in %s", cfg.StateDBPath)
	} else {
		store = statestore.NewMemoryStore()
		log.Println("Device state kept in memory")
	}
	defer store.Close()

	backendClient := backend.NewClient(cfg.BackendURL, nil, cfg.BackendTimeout)

	// The handler takes a nil Numbers when no provider is configured.
	var provider api.Numbers
	if cfg.VirtualSIM.BaseURL != "" {
		provider = numbers.NewGateway(numbers.Config{
			BaseURL:     cfg.VirtualSIM.BaseURL,
			APIKey:      cfg.VirtualSIM.APIKey,
			Timeout:     cfg.VirtualSIM.Timeout,
			MaxAttempts: cfg.VirtualSIM.MaxAttempts,
			BaseDelay:   cfg.VirtualSIM.BaseDelay,
		}, nil)
	} else {
		log.Println("VIRTUAL_SIM_BASE_URL not set, virtual numbers disabled")
	}

	handler := api.NewHandler(backendClient, provider, store, api.Options{
		AppURL:       cfg.AppURL,
		TokenSecret:  []byte(cfg.TokenSecret),
		CookieSecure: cfg.CookieSecure,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Gateway starting on port %s (backend %s)", cfg.Port, cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}
