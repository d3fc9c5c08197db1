package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FlowGuard/internal/classifier"
	"FlowGuard/internal/config"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	listen := flag.String("listen", "", "Listen address (defaults to classifier.grpc.addr)")
	modelPath := flag.String("model", "", "ONNX model path")
	labelsPath := flag.String("labels", "", "Class labels file, one label per line")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *modelPath != "" {
		cfg.Classifier.ONNX.ModelPath = *modelPath
	}
	if *labelsPath != "" {
		cfg.Classifier.ONNX.LabelsPath = *labelsPath
	}
	addr := cfg.Classifier.GRPC.Addr
	if *listen != "" {
		addr = *listen
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(addr, cfg.Classifier.ONNX, logger); err != nil {
		logger.Fatal("Classifier server failed", zap.Error(err))
	}
}

// run hosts the ONNX model as the gRPC Classifier service used by fg-ids with classifier.type grpc.
func run(addr string, onnx config.ONNXConfig, logger *zap.Logger) error {
	if addr == "" {
		return fmt.Errorf("no listen address: set classifier.grpc.addr or pass -listen")
	}
	clf, err := classifier.NewONNXClassifier(onnx, logger)
	if err != nil {
		return err
	}
	defer clf.Close()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(logErrors(logger)))
	classifier.RegisterServer(srv, clf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received, draining requests")
		srv.GracefulStop()
	}()

	logger.Info("Classifier service listening", zap.String("addr", lis.Addr().String()),
		zap.String("model", onnx.ModelPath))
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server stopped: %w", err)
	}
	logger.Info("Classifier service stopped")
	return nil
}

func logErrors(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("Classification request failed", zap.String("method", info.FullMethod),
				zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		}
		return resp, err
	}
}
