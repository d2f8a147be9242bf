// cmd/orchestrator wires the whole fleet together: it loads configuration and
// secrets, opens the store, pre-warms the proxy and token pools, builds
// the restart governor's action chain, starts the worker fleet and the
// web admin surface, and shuts everything down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/killmongerinheret/vinted-watch/internal/cache"
	"github.com/killmongerinheret/vinted-watch/internal/catalog"
	"github.com/killmongerinheret/vinted-watch/internal/config"
	"github.com/killmongerinheret/vinted-watch/internal/governor"
	"github.com/killmongerinheret/vinted-watch/internal/model"
	"github.com/killmongerinheret/vinted-watch/internal/notify"
	"github.com/killmongerinheret/vinted-watch/internal/orchestrator"
	"github.com/killmongerinheret/vinted-watch/internal/proxypool"
	"github.com/killmongerinheret/vinted-watch/internal/store"
	"github.com/killmongerinheret/vinted-watch/internal/tokenpool"
	"github.com/killmongerinheret/vinted-watch/internal/webadmin"
)

// landingPage is visited once per minted session to harvest the
// access_token_web cookie.
const landingPage = "https://www.vinted.de/"

// maxSessionErrors is the per-session accumulated-error threshold.
const maxSessionErrors = 5

const appVersion = "1.2.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secrets, err := config.LoadSecrets()
	if err != nil {
		log.Fatalf("load secrets: %v", err)
	}

	cfgManager, err := config.NewManager(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := store.Open(secrets.DatabaseURL)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate store: %v", err)
	}

	if err := db.SetParameter(ctx, model.ParamBotStartTime, strconv.FormatInt(model.Now(), 10)); err != nil {
		log.Printf("⚠️ startup: failed to record bot_start_time: %v", err)
	}
	if err := db.SetParameter(ctx, model.ParamVintedAPIRequests, "0"); err != nil {
		log.Printf("⚠️ startup: failed to reset vinted_api_requests: %v", err)
	}
	if err := db.SetParameter(ctx, model.ParamVersion, appVersion); err != nil {
		log.Printf("⚠️ startup: failed to record version: %v", err)
	}

	prometheus.MustRegister(catalog.Collector(), governor.Collector())

	queries, err := db.Queries(ctx)
	if err != nil {
		log.Fatalf("enumerate queries: %v", err)
	}
	workerCount := countWorkerSlots(queries)

	redisCache := cache.Connect(secrets.RedisURL)
	defer redisCache.Close()
	log.Printf("cache: running in %s mode", redisCache.Mode())

	proxies := buildProxyPool(ctx, db, cfgManager, redisCache)
	log.Printf("proxypool: %d candidate proxies loaded", proxies.Size())

	tokens := tokenpool.New(proxies, landingPage, maxSessionErrors, workerCount)
	prometheus.MustRegister(tokens.Collector())

	gov := buildGovernor(ctx, db, cfgManager, secrets)

	webPort := secrets.Port
	if webPort == 0 {
		webPort = cfgManager.Get().WebPort
	}
	webURL := fmt.Sprintf("http://localhost:%d", webPort)

	// Environment wins for sensitive keys; the store parameters are the
	// fallback so a deployment without env credentials can still be
	// configured through the admin surface.
	botToken := secrets.TelegramBotToken
	chatID := secrets.TelegramChatID
	if botToken == "" {
		if v, ok, _ := db.Parameter(ctx, model.ParamTelegramToken); ok {
			botToken = v
		}
	}
	if chatID == 0 {
		if v, ok, _ := db.Parameter(ctx, model.ParamTelegramChatID); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				chatID = n
			}
		}
	}

	var bot *tgbotapi.BotAPI
	if botToken != "" {
		bot, err = tgbotapi.NewBotAPI(botToken)
		if err != nil {
			log.Printf("⚠️ telegram: bot init failed, notifications disabled: %v", err)
			bot = nil
		} else {
			log.Printf("✅ telegram: authorized as %s", bot.Self.UserName)
		}
	}

	var controller *notify.Controller
	var telegramCtrl webadmin.TelegramControl
	messages := make(chan notify.Message, 256)
	if bot != nil {
		sender := notify.NewSender(bot, chatID)
		poller := notify.NewCommandPoller(bot, chatID, webURL, db)
		controller = notify.NewController(sender, poller, messages)
		telegramCtrl = controller
	}

	admin := webadmin.New(db, gov, proxies, telegramCtrl, gov.ForceRestart, redisCache.Mode)

	orch := &orchestrator.Orchestrator{
		Store:    db,
		Config:   cfgManager,
		Proxies:  proxies,
		Tokens:   tokens,
		Governor: gov,
		Cache:    redisCache,
		Notifier: controller,
		Messages: messages,
		WebHost:  "www.vinted.de",
	}
	orch.Broadcast = admin.Broadcast

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("orchestrator start: %v", err)
	}

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", webPort), Handler: admin.Handler()}
	go func() {
		log.Printf("📊 web admin listening on :%d", webPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ web admin server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	log.Println("👂 listening for shutdown signals")
	<-sigChan

	log.Println("🛑 shutting down")
	cancel()
	orch.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ web admin shutdown error: %v", err)
	}

	log.Println("✅ shutdown complete")
}

// countWorkerSlots computes the target fleet size: one worker per normal
// query, three staggered workers per priority query.
func countWorkerSlots(queries []model.Query) int {
	n := 0
	for _, q := range queries {
		if q.Priority {
			n += 3
		} else {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// buildProxyPool loads the proxy candidate set from the admin-mutable
// store parameters, falling back to the file-backed config defaults.
// proxy_list_link wins over proxy_list when both are present.
func buildProxyPool(ctx context.Context, db *store.Store, cfgManager *config.Manager, health proxypool.HealthCache) *proxypool.Pool {
	params, err := db.Parameters(ctx)
	if err != nil {
		log.Printf("⚠️ startup: failed to read parameters for proxy pool, using file defaults: %v", err)
		params = nil
	}
	defaults := cfgManager.Get()

	link := params[model.ParamProxyListLink]
	if link == "" {
		link = defaults.ProxyListLink
	}

	var raw []string
	if link != "" {
		fetched, err := fetchProxyList(ctx, link)
		if err != nil {
			log.Printf("⚠️ startup: failed to fetch proxy_list_link %q, falling back to proxy_list: %v", link, err)
		} else {
			raw = fetched
		}
	}

	if len(raw) == 0 {
		if list := params[model.ParamProxyList]; list != "" {
			raw = splitProxyList(list)
		} else {
			raw = defaults.ProxyList
		}
	}

	checkProxies := defaults.CheckProxies
	if v := params[model.ParamCheckProxies]; v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			checkProxies = parsed
		}
	}

	pool := proxypool.New(raw, proxypool.WithHealthCache(health))
	if checkProxies {
		pool.Validate(ctx)
	}
	return pool
}

// splitProxyList accepts newline- or semicolon-separated proxy entries.
func splitProxyList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func fetchProxyList(ctx context.Context, link string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy_list_link returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return splitProxyList(string(body)), nil
}

// buildGovernor wires the restart governor's tunables and its ordered
// restart-action chain: hosting-provider control-plane API, then CLI
// redeploy, then webhook, then the emergency self-exit gated behind
// ALLOW_EMERGENCY_EXIT.
func buildGovernor(ctx context.Context, db *store.Store, cfgManager *config.Manager, secrets *config.Secrets) *governor.Governor {
	params, err := db.Parameters(ctx)
	if err != nil {
		log.Printf("⚠️ startup: failed to read parameters for governor, using file defaults: %v", err)
		params = nil
	}
	defaults := cfgManager.Get()

	cfg := governor.DefaultConfig()
	cfg.RedeployThreshold = defaults.RedeployThreshold
	cfg.MaxHTTPErrors = defaults.MaxHTTPErrors
	if v := params[model.ParamRedeployThresholdMinutes]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedeployThreshold = time.Duration(n) * time.Minute
		}
	}
	if v := params[model.ParamMaxHTTPErrors]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxHTTPErrors = n
		}
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	persist := governor.PersistFunc(func(ctx context.Context, unixTime int64) error {
		return db.SetParameter(ctx, model.ParamLastRedeployTime, strconv.FormatInt(unixTime, 10))
	})

	actions := []governor.RestartAction{
		&governor.ControlPlaneAction{
			Token:     secrets.RailwayToken,
			ProjectID: secrets.RailwayProjectID,
			ServiceID: secrets.RailwayServiceID,
			Client:    httpClient,
		},
		&governor.CLIAction{Command: "railway", Args: []string{"redeploy", "--yes"}},
		&governor.WebhookAction{URL: secrets.RailwayRedeployWebhook, Client: httpClient},
		&governor.EmergencyExitAction{Allowed: secrets.AllowEmergencyExit, Persist: persist},
	}

	g := governor.New(cfg, actions)

	if v := params[model.ParamLastRedeployTime]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			g.SetLastRedeploy(time.Unix(n, 0))
		}
	}

	return g
}
