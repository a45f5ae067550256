// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianInsight/pkg/logging"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/backup"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/bootstrap"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/config"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/goldencopy"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/observability"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/routes"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/schema"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/stores"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/tasks"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("datakeeper-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("INSIGHT_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- System store (required) ---
	system, err := stores.OpenSystem(stores.SystemConfig{
		Dir:    cfg.SystemStoreDir,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to open the system store: %v", err)
	}
	defer system.Close()

	// --- Vector index (optional, lightweight mode when unset) ---
	vector, err := stores.OpenVector(cfg.WeaviateURL, cfg.VectorPersistDir)
	if err != nil {
		slog.Warn("vector index unavailable, running in lightweight mode", "error", err)
		vector, _ = stores.OpenVector("", cfg.VectorPersistDir)
	}

	cache := stores.NewCache(cfg.CacheAddr)
	golden := goldencopy.NewManager(cfg.AnalyticalSource, cfg.AnalyticalWorkingCopy, logger)
	pipeline := schema.NewPipeline(vector, logger)
	metrics := observability.NewMetrics()

	backups := backup.NewManager(backup.Config{
		Dir:              cfg.BackupDir,
		System:           system,
		VectorPersistDir: cfg.VectorPersistDir,
		AnalyticalPath:   cfg.AnalyticalWorkingCopy,
		Retention:        cfg.BackupRetention,
		Logger:           logger,
	})

	runner := tasks.NewRunner(tasks.Config{
		Timeout:   cfg.TaskTimeout,
		Retention: cfg.TaskRetention,
		Logger:    logger,
		OnOutcome: func(kind string, status tasks.Status) {
			metrics.TaskOutcomesTotal.WithLabelValues(kind, string(status)).Inc()
		},
	})
	defer runner.Close()

	// --- Bootstrap ---
	orchestrator := bootstrap.NewOrchestrator(bootstrap.Deps{
		Config:   cfg,
		System:   system,
		Vector:   vector,
		Cache:    cache,
		Golden:   golden,
		Pipeline: pipeline,
		Logger:   logger,
	})
	report := orchestrator.Run(context.Background())
	if report.Fatal() {
		log.Fatalf("bootstrap failed: %+v", report.Steps[len(report.Steps)-1])
	}

	// Keep the working copy current while the service runs.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.EnableAnalyticalStore {
		go func() {
			if err := golden.Watch(watchCtx); err != nil {
				slog.Warn("golden copy watcher stopped", "error", err)
			}
		}()
	}

	openAnalytical := func() (*sql.DB, func(), error) {
		if !cfg.EnableAnalyticalStore {
			return nil, nil, nil
		}
		analytical, err := stores.OpenAnalytical(cfg.AnalyticalWorkingCopy, true)
		if err != nil {
			return nil, nil, err
		}
		return analytical.DB(), func() { analytical.Close() }, nil
	}

	storeList := []stores.Store{system, vector, cache}
	if cfg.EnableAnalyticalStore {
		if analytical, err := stores.OpenAnalytical(cfg.AnalyticalWorkingCopy, true); err == nil {
			defer analytical.Close()
			storeList = append(storeList, analytical)
		}
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("datakeeper-service"))
	routes.SetupRoutes(router, routes.Deps{
		Config:          cfg,
		Backups:         backups,
		Pipeline:        pipeline,
		Runner:          runner,
		Metrics:         metrics,
		Stores:          storeList,
		OpenAnalytical:  openAnalytical,
		BootstrapReport: report,
	})

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: router,
	}
	go func() {
		slog.Info("starting the datakeeper server", "port", cfg.HTTPPort,
			"weaviate", logging.MaskDSN(cfg.WeaviateURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down the datakeeper server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
}
