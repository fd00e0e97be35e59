package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"synckit/internal/auth"
	"synckit/internal/config"
	"synckit/internal/coordinator"
	"synckit/internal/interface/httpapi"
	"synckit/internal/obs/log"
	"synckit/internal/obs/metrics"
	libp2ppub "synckit/internal/publisher/libp2p"
	"synckit/internal/storage"
	"synckit/internal/storage/badger"
	"synckit/internal/storage/postgres"
	"synckit/internal/storage/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := log.New(os.Stderr, level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageAd, err := buildStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if storageAd != nil {
		defer storageAd.Close()
	}

	var issuer *auth.Issuer
	var perms *auth.Permissions
	if cfg.JWTSecret != "" {
		issuer, err = auth.NewIssuer([]byte(cfg.JWTSecret), 24*time.Hour)
		if err != nil {
			return fmt.Errorf("failed to build auth issuer: %w", err)
		}
		perms = auth.NewPermissions()
	}

	reg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(reg)

	coordCfg := coordinator.Config{
		BatchWindow:         cfg.BatchWindow,
		OutboundQueueDepth:  cfg.OutboundQueueDepth,
		MaxDocumentIDLength: cfg.MaxDocumentIDLength,
		AwarenessTTL:        cfg.AwarenessTTL,
		MaxMessagesPerMin:   cfg.MaxMessagesPerMinute,
		LocalNodeID:         uniqueNodeID(),
	}

	var corePerms coordinator.Permissions = allowAllPermissions{}
	if perms != nil {
		corePerms = perms
	}

	var publisher *libp2ppub.Node
	if cfg.LibP2PListen != "" {
		publisher, err = libp2ppub.New(ctx, libp2ppub.Config{ListenAddrs: []string{cfg.LibP2PListen}, NodeID: coordCfg.LocalNodeID}, logger)
		if err != nil {
			return fmt.Errorf("failed to start libp2p node: %w", err)
		}
		defer publisher.Close()
	}

	coord := coordinator.New(coordCfg, corePerms, func() int64 { return time.Now().UnixMilli() }, storageAd, publisherOrNil(publisher), logger)
	coord.SetMetrics(metricsReg)

	go coord.RunAwarenessEviction(ctx.Done(), cfg.AwarenessTTL/2)

	if publisher != nil {
		coord.OnDocumentCreated(func(docID string) {
			if err := publisher.SubscribeDocument(ctx, docID, coord.ApplyRemoteDelta); err != nil {
				logger.Warn().Err(err).Str("doc_id", docID).Msg("failed to subscribe to document topic")
			}
		})
	}

	cap := httpapi.Capability{
		ProtocolVersion:     1,
		MaxMessageBytes:     cfg.MaxMessageBytes,
		MaxDocumentIDLength: cfg.MaxDocumentIDLength,
		BatchWindowMS:       int64(cfg.BatchWindowMS),
		HeartbeatIntervalMS: int64(cfg.HeartbeatIntervalMS),
	}
	api := httpapi.New(coord, issuer, perms, logger, cap, reg, cfg.HeartbeatInterval, cfg.HeartbeatTimeout, cfg.MaxMessageBytes)
	httpServer := httpapi.NewHTTPServer(cfg.ListenAddr, api)

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("synckitd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildStorage(ctx context.Context, cfg config.Config) (storage.Adapter, error) {
	switch cfg.StorageKind {
	case "badger":
		store, err := badger.Open(cfg.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return snapshot.Wrap(store), nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return snapshot.Wrap(store), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage_kind %q", cfg.StorageKind)
	}
}

func publisherOrNil(n *libp2ppub.Node) coordinator.Publisher {
	if n == nil {
		return nil
	}
	return n
}

func uniqueNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "synckit-node"
	}
	return host
}

type allowAllPermissions struct{}

func (allowAllPermissions) CanRead(string, string) bool  { return true }
func (allowAllPermissions) CanWrite(string, string) bool { return true }
