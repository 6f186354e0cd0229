// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command themove starts the TheMove API server: SMS and web event search
// over the campus poster index, phone verification, and the daily digest.
//
// Usage:
//
//	go run ./cmd/themove
//	go run ./cmd/themove -port 9090 -debug
//
// Required environment:
//
//	OPENAI_API_KEY        chat + embedding access
//	PINECONE_INDEX_HOST   per-index data-plane host
//	PINECONE_API_KEY      index access
//
// Optional environment:
//
//	TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN / TWILIO_FROM_NUMBER
//	                      outbound SMS (verification, digest)
//	BADGER_PATH           verification store directory
//	BASE_URL              public site URL for result links
//	TENANT                campus name for single-campus deployments
//	POSTERS_FEED_URL      upcoming-poster JSON feed for the daily digest
//	DIGEST_SCHEDULE       cron spec, default "0 9 * * *"
//	OTEL_STDOUT_TRACES    set to print spans to stdout
//
// Example requests:
//
//	curl http://localhost:8080/v1/health
//	curl -X POST http://localhost:8080/v1/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "free pizza tomorrow", "school": "unc"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/usethemove/themove/services/auth"
	"github.com/usethemove/themove/services/digest"
	"github.com/usethemove/themove/services/httpapi"
	"github.com/usethemove/themove/services/llm"
	"github.com/usethemove/themove/services/search"
	"github.com/usethemove/themove/services/sms"
	badgerstore "github.com/usethemove/themove/services/storage/badger"
	"github.com/usethemove/themove/services/telemetry"
	"github.com/usethemove/themove/services/vector"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debugFlag := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()
	debug := *debugFlag || os.Getenv("DEBUG") != ""

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, "themove-api")
	if err != nil {
		logger.Error("telemetry init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// External clients. OpenAI and Pinecone are hard requirements; Twilio
	// is optional (inbound replies go through TwiML, not the REST client).
	openaiClient, err := llm.NewOpenAIClient()
	if err != nil {
		logger.Error("openai client init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	pineconeClient, err := vector.NewPineconeClient(logger)
	if err != nil {
		logger.Error("pinecone client init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var twilioClient *sms.TwilioClient
	if tc, err := sms.NewTwilioClient(logger); err != nil {
		logger.Warn("twilio client unavailable, outbound sms disabled", slog.String("error", err.Error()))
	} else {
		twilioClient = tc
	}

	// Verification store. Graceful degradation: without the store, search
	// still works but the quota never unlocks and verification is off.
	var db *badgerstore.DB
	if d, err := badgerstore.Open(badgerstore.DefaultConfig(), logger); err != nil {
		logger.Warn("badger store unavailable, verification disabled", slog.String("error", err.Error()))
	} else {
		db = d
	}

	svc := search.NewService(search.ServiceConfig{
		Embedder: openaiClient,
		Index:    pineconeClient,
		Resolver: search.NewChatDateResolver(openaiClient),
		BaseURL:  envDefault("BASE_URL", "https://usethemove.com"),
		Logger:   logger,
	})
	classifier := search.NewIntentClassifier(openaiClient, logger)

	var verifier *auth.Verifier
	var verified auth.VerifiedStore
	if db != nil && twilioClient != nil {
		verifier = auth.NewVerifier(auth.NewBadgerCodeStore(db), twilioClient, logger)
		verified = auth.NewBadgerVerifiedStore(db)
	}

	handlers := httpapi.NewHandlers(httpapi.HandlersConfig{
		Service:    svc,
		Classifier: classifier,
		Verifier:   verifier,
		Verified:   verified,
		Tenant:     os.Getenv("TENANT"),
		Logger:     logger,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("themove-api"))
	if debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	httpapi.RegisterRoutes(router, handlers)

	// Daily digest. Runs only when everything it needs is present:
	// outbound SMS, the user store, and the poster feed.
	var scheduler *digest.Scheduler
	if feedURL := os.Getenv("POSTERS_FEED_URL"); twilioClient != nil && db != nil && feedURL != "" {
		runner := digest.NewRunner(
			digest.NewBadgerUserStore(db),
			digest.NewFeedPosterSource(feedURL),
			openaiClient,
			twilioClient,
			logger,
		)
		s, err := digest.NewScheduler(runner, os.Getenv("DIGEST_SCHEDULE"), logger)
		if err != nil {
			logger.Error("digest scheduler init failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		scheduler = s
		scheduler.Start()
	} else {
		logger.Info("digest disabled (requires twilio, badger, and POSTERS_FEED_URL)")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down")
		if scheduler != nil {
			scheduler.Stop()
		}
		if db != nil {
			if err := db.Close(); err != nil {
				logger.Warn("closing badger store failed", slog.String("error", err.Error()))
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("flushing traces failed", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// envDefault returns the env value or a fallback.
func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
