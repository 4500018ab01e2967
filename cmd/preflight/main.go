// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/sensoralert/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		fail(err.Error())
	}

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty; acknowledge, status and config routes are open.")
	}
	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		warn("no API keys configured; read routes and the alert stream are open.")
	}
	for name, v := range map[string]string{"ADMIN_API_KEYS": os.Getenv("ADMIN_API_KEYS"), "PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS")} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	ok("ADDR=" + cfg.Addr)

	switch cfg.Store {
	case config.StorePostgres:
		ok("STORE=postgres (DATABASE_URL present)")
	case config.StoreSQLite:
		ok("STORE=sqlite SQLITE_PATH=" + cfg.SQLitePath)
	default:
		warn("STORE=memory; alerts and thresholds are lost on restart.")
	}

	ok(fmt.Sprintf("sampling every %s after %s settle; seed thresholds temp>%.1f humidity>%.1f",
		cfg.SampleInterval, cfg.SettleDelay, cfg.SeedTempMax, cfg.SeedHumidityMax))

	if cfg.RedisAddr == "" {
		warn("REDIS_ADDR empty; alerts are not relayed to Redis.")
	} else {
		ok("REDIS_ADDR=" + cfg.RedisAddr + " channel=" + cfg.RedisChannel)
	}
	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty; Slack notifications disabled.")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; browsers are blocked by CORS for cross-origin requests.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
