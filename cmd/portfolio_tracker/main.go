package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"portfolio_tracker/internal/cache/ownercache"
	"portfolio_tracker/internal/client"
	"portfolio_tracker/internal/config"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/infrastructure/restapi"
	"portfolio_tracker/internal/registry"
	"portfolio_tracker/internal/service"
	"portfolio_tracker/pkg/metrics"
	"portfolio_tracker/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	slogHandler := zapslog.NewHandler(zapLogger.Core())
	slog.SetDefault(slog.New(slogHandler))

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warnf("Invalid log level in config: %s. Defaulting to Info.", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	metrics.MustRegisterMetrics()

	// Seed the network registry from config.
	networkRegistry := registry.NewNetworkRegistry(zapLogger)
	for _, nc := range cfg.Networks {
		network := entity.Network{
			ID:          nc.ID,
			Name:        nc.Name,
			ChainID:     nc.ChainID,
			RPCEndpoint: nc.RPCEndpoint,
			Native: entity.NativeToken{
				Symbol:   nc.NativeSymbol,
				Decimals: nc.NativeDecimals,
				PriceID:  nc.NativePriceID,
			},
			MulticallAddress: nc.MulticallAddress,
		}
		if err := networkRegistry.Register(network); err != nil {
			zapLogger.Fatal("Failed to register network", zap.String("networkId", nc.ID), zap.Error(err))
		}
		for _, tc := range nc.Tokens {
			token := entity.Token{
				Symbol:          tc.Symbol,
				ContractAddress: tc.ContractAddress,
				Decimals:        tc.Decimals,
				PriceID:         tc.PriceID,
			}
			if err := networkRegistry.RegisterToken(nc.ID, token); err != nil {
				zapLogger.Fatal("Failed to register token",
					zap.String("networkId", nc.ID),
					zap.String("symbol", tc.Symbol),
					zap.Error(err))
			}
		}
	}
	zapLogger.Info("Network registry seeded", zap.Int("networks", len(cfg.Networks)))

	fetchTimeout := time.Duration(cfg.Scanner.FetchTimeoutMs) * time.Millisecond
	chainReader := client.NewEVMReader(zapLogger, fetchTimeout)
	defer chainReader.Close()

	priceTimeout := time.Duration(cfg.PriceService.RequestTimeoutMs) * time.Millisecond
	priceReader := client.NewCoinGeckoClient(cfg.PriceService.BaseURL, cfg.PriceService.APIKey, priceTimeout, zapLogger)
	priceTTL := time.Duration(cfg.Cache.PriceTTLMinutes) * time.Minute
	priceService := service.NewPriceService(zapLogger, cfg.PriceService, priceTTL, priceReader)
	zapLogger.Info("Price service initialized")

	sweepInterval := time.Duration(cfg.Cache.SweepIntervalMinutes) * time.Minute
	inactiveTTL := time.Duration(cfg.Cache.BalanceInactiveTTLMinutes) * time.Minute
	balanceCache := ownercache.New[*entity.NetworkBalance](inactiveTTL, sweepInterval)
	stateCache := ownercache.New[bool](inactiveTTL, sweepInterval)

	active := service.NewActiveAddresses()
	for _, tracked := range cfg.TrackedAddresses {
		active.Register(tracked.Address)
	}

	scanner := service.NewScannerService(zapLogger, *cfg, networkRegistry, chainReader, priceService, balanceCache, stateCache, active)
	coordinator := service.NewCoordinator(zapLogger, scanner, cfg.Scanner.MaxConcurrentAddresses)
	zapLogger.Info("Scanner service initialized")

	refreshWindow := time.Duration(cfg.Cache.RefreshWindowMinutes) * time.Minute
	sweeper := service.NewRefreshSweeper(zapLogger, scanner, priceService, networkRegistry, active, sweepInterval, refreshWindow)
	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	defer cancelSweeper()
	sweeper.Start(sweeperCtx)
	defer sweeper.Stop()

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.Use(restapi.ZapLoggerMiddleware(zapLogger))
	router.Use(gin.Recovery())

	handler := restapi.NewPortfolioHandler(scanner, priceService, coordinator, networkRegistry, active, zapLogger)
	restapi.RegisterRoutes(router, handler)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pprofRouter := router.Group("/debug/pprof")
	{
		pprofRouter.GET("/", gin.WrapF(pprof.Index))
		pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
		pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
		pprofRouter.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	balanceCache.ClearAll()
	stateCache.ClearAll()
	zapLogger.Info("Server exiting")
}
