// Command miniapp boots the Mini App identity core headlessly against a
// running gateway. The host payload is read from MINI_APP_INIT_DATA; when it
// is unset the process behaves like a reload outside Telegram.
//
//	miniapp                      boot and print the flow state
//	miniapp search <query>       boot, then search users
//	miniapp dashboard <route>    sign in to the dashboard and gate <route>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/api/dto"
	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/miniapp/client"
	"github.com/spec-kit/botadmin/internal/miniapp/fingerprint"
	"github.com/spec-kit/botadmin/internal/miniapp/rolegate"
	"github.com/spec-kit/botadmin/internal/miniapp/telegram"
	"github.com/spec-kit/botadmin/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// stdout carries the printed state
	cfg.Logger.Output = "stderr"
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.MiniApp.APIBaseURL)

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "dashboard" {
		route := "/"
		if len(args) > 1 {
			route = args[1]
		}
		fingerprints := newFingerprints(cfg, fingerprint.NewCache(), logger)
		if err := runDashboard(ctx, api, fingerprints, route, logger); err != nil {
			logger.Fatal("dashboard", zap.Error(err))
		}
		return
	}

	storage, closeStorage, err := newStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("session storage", zap.Error(err))
	}
	defer closeStorage()

	flow := newFlow(cfg, api, storage, os.Getenv("MINI_APP_INIT_DATA"), logger)
	if err := flow.Boot(ctx); err != nil {
		logger.Warn("boot", zap.Error(err))
	}

	if len(args) > 1 && args[0] == "search" {
		if err := flow.Search(ctx, strings.Join(args[1:], " ")); err != nil {
			logger.Warn("search", zap.Error(err))
		}
	}

	printJSON(flow.State())
}

func runDashboard(ctx context.Context, api *client.Client, generator *fingerprint.Generator, path string, logger *zap.Logger) error {
	if password := os.Getenv("MINI_APP_ADMIN_PASSWORD"); password != "" {
		_, err := api.Login(ctx, dto.LoginRequest{
			Username:    os.Getenv("MINI_APP_ADMIN_USERNAME"),
			Password:    password,
			Fingerprint: generator.Generate(ctx),
		})
		if err != nil {
			return err
		}
	}

	route, ok := rolegate.Lookup(rolegate.DashboardRoutes, path)
	if !ok {
		return fmt.Errorf("unknown dashboard route %q", path)
	}
	status := rolegate.Resolve(ctx, api, logger)
	decision := rolegate.New().Decide(status, route)
	printJSON(map[string]string{"route": route.Path, "outcome": decision.Outcome.String(), "redirect_to": decision.RedirectTo})
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func hostLocator(initData string, logger *zap.Logger) telegram.Locator {
	return func() (telegram.Host, bool) {
		if initData == "" {
			return nil, false
		}
		return telegram.NewStaticHost(payloadFromInitData(initData, logger)), true
	}
}
