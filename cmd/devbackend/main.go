package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/maxwin66/companion/internal/config"
	"github.com/maxwin66/companion/pkg/devapi"
	"github.com/maxwin66/companion/pkg/repository/userprovider"
	"github.com/maxwin66/companion/pkg/service/chat"
)

func main() {
	cfg, err := config.LoadBackend()
	if err != nil {
		log.Fatal(err)
	}

	// Initialize GPT service
	service := chat.NewGPTService(cfg.OpenAIAPIKey, chat.Config{Model: cfg.ChatModel})

	provider := userprovider.NewUserProvider()

	handler := devapi.NewHandler(service, provider, devapi.Options{
		GatewayURL:  cfg.GatewayURL,
		TokenSecret: []byte(cfg.TokenSecret),
		TokenTTL:    cfg.TokenTTL,
		ChatCost:    cfg.ChatCost,
		ImageCost:   cfg.ImageCost,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Reference backend starting on port %s", cfg.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
