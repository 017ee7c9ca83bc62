package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"legalmind/internal/api"
	"legalmind/internal/config"
	"legalmind/internal/extract"
	"legalmind/internal/llm"
	"legalmind/internal/logging"
	"legalmind/internal/orchestrator"
	"legalmind/internal/store"
	"legalmind/internal/uploads"
	"legalmind/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// newLLMClient returns nil when no provider is configured; the orchestrator then
// answers with a fixed message instead of failing.
func newLLMClient(ctx context.Context, cfg *config.Config) llm.Client {
	client, err := llm.New(ctx, cfg)
	if err != nil {
		logging.Logger().Warn("llm client not available", "error", err)
		return nil
	}
	logging.Logger().Info("llm client ready", "provider", client.Provider())
	return client
}

func newDispatcher(cfg *config.Config, st store.Store) *worker.Dispatcher {
	dcfg := worker.DispatcherConfig{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: cfg.WorkerIdleTimeout(),
	}
	// replicas sharing a redis store also share turn locks
	if rs, ok := st.(*store.RedisStore); ok {
		dcfg.Locker = worker.NewRedisLocker(rs.Client(), cfg.LLMTimeout()+30*time.Second)
	}
	return worker.NewDispatcher(dcfg)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.Logger()
	log.Info("starting legalmind", "store", cfg.BasicConfig.Store, "addr", cfg.BasicConfig.ServerAddress)

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	store.StartSweeper(ctx, st, cfg.CleanInterval())

	extractor, err := extract.New(ctx)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}

	dispatcher := newDispatcher(cfg, st)
	defer dispatcher.Close()

	orch := orchestrator.NewService(newLLMClient(ctx, cfg), st, orchestrator.WithRunner(dispatcher))

	spool, err := uploads.NewSpool(cfg.BasicConfig.UploadDir, cfg.UploadTTL())
	if err != nil {
		return fmt.Errorf("init upload spool: %w", err)
	}
	spool.StartTempFileCleaner(ctx, cfg.CleanInterval())

	handler := api.NewHandler(orch, st, extractor, spool, orch.Registry(), cfg.BasicConfig.MaxUploadBytes)

	router := gin.New()
	router.Use(logging.GinMiddleware(), gin.Recovery())
	router.MaxMultipartMemory = cfg.BasicConfig.MaxUploadBytes
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.BasicConfig.ServerAddress,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
