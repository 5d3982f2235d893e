package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/weauth/weauth/internal/cache"
	"github.com/weauth/weauth/internal/cache/memory"
	rediscache "github.com/weauth/weauth/internal/cache/redis"
	"github.com/weauth/weauth/internal/config"
	weauthhttp "github.com/weauth/weauth/internal/http"
	controllers "github.com/weauth/weauth/internal/http/controllers/social"
	"github.com/weauth/weauth/internal/http/services/social"
	"github.com/weauth/weauth/internal/metrics"
	"github.com/weauth/weauth/internal/oauth/wechat"
	"github.com/weauth/weauth/internal/observability/logger"
)

func main() {
	// .env es opcional; en prod las variables vienen del entorno real.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Init(logger.Config{Env: "dev", Level: "info"})
		logger.L().Fatal("invalid configuration", logger.Err(err))
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	if !cfg.Providers.Wechat.Enabled {
		log.Fatal("no identity provider enabled")
	}

	var store cache.Cache
	switch cfg.Cache.Kind {
	case "redis":
		store = rediscache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.MemoryTTL())
		log.Info("cache backend", logger.String("kind", "redis"), logger.String("addr", cfg.Cache.Redis.Addr))
	default:
		store = memory.New(cfg.MemoryTTL())
		log.Info("cache backend", logger.String("kind", "memory"))
	}

	recorder, err := metrics.NewAuthRecorder(nil)
	if err != nil {
		log.Fatal("metrics registration failed", logger.Err(err))
	}

	oauthClient := wechat.New(wechat.Config{
		AppID:           cfg.Providers.Wechat.AppID,
		AppSecret:       cfg.Providers.Wechat.AppSecret,
		RedirectURL:     cfg.Providers.Wechat.RedirectURL,
		SendRedirectURI: cfg.Providers.Wechat.SendRedirectURI,
	}, nil)

	signer := social.NewHSSigner(cfg.State.Secret, "weauth", cfg.StateTTL())
	attempts := social.NewAttemptStore(store, cfg.StateTTL())
	variant := social.Variant(cfg.Providers.Wechat.Variant)

	startSvc := social.NewStartService(social.StartDeps{
		OAuth:        oauthClient,
		Signer:       signer,
		Attempts:     attempts,
		Variant:      variant,
		DefaultScope: splitScope(cfg.Providers.Wechat.DefaultScope),
	})
	callbackSvc := social.NewCallbackService(social.CallbackDeps{
		OAuth:    oauthClient,
		Signer:   signer,
		Attempts: attempts,
		Recorder: recorder,
		Variant:  variant,
		Provider: "wechat",
		UIDField: cfg.Providers.Wechat.UIDField,
	})

	router := weauthhttp.NewRouter(weauthhttp.RouterDeps{
		Start:    controllers.NewStartController(startSvc),
		Callback: controllers.NewCallbackController(callbackSvc, signer),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.Variant(string(variant)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", logger.Err(err))
	}
}

func splitScope(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
