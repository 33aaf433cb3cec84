package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"evboard/internal/attendance"
	"evboard/internal/board"
	"evboard/internal/capture"
	"evboard/internal/config"
	"evboard/internal/feed"
	appLog "evboard/internal/log"
	"evboard/internal/metrics"
	"evboard/internal/pipeline"
	"evboard/internal/saved"
	"evboard/internal/session"
	"evboard/internal/source"
	"evboard/internal/supabase"
	"evboard/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	snapshot   string
	debug      bool
}

func main() {
	appLog.Info("evboard starting", "version", version)

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	viewer, err := session.FromAccessToken(conf.Supabase.AccessToken, conf.Supabase.JWTSecret, time.Now())
	if err != nil {
		// 토큰이 만료/위조된 경우 익명(읽기 전용)으로 계속 동작한다.
		appLog.Warn("access token rejected, continuing anonymously", "err", err)
		conf.Supabase.AccessToken = ""
		viewer = session.Viewer{}
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"supabase", conf.Supabase.URL,
		"viewer", viewer.LoggedIn(),
		"redis", conf.Saved.RedisAddr != "",
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	m := metrics.New()
	db := supabase.NewClient(conf.Supabase)
	store, closeStore := saved.Open(ctx, conf.Saved)
	defer func() {
		if err := closeStore(); err != nil {
			appLog.Error("saved store close failed", err)
		}
	}()

	b := board.New(ctx, board.Options{
		Source:     source.New(db, m),
		Attendance: attendance.New(db),
		Feed:       feed.NewClient(conf.Feed, m),
		Saved:      store,
		Metrics:    m,
		Viewer:     viewer,
		Location:   conf.Location(),
	})
	if err := b.Reload(ctx); err != nil {
		appLog.Error("initial load failed", err)
	}

	if flags.once {
		if err := dumpBoard(b); err != nil {
			appLog.Error("dump failed", err)
			os.Exit(1)
		}
		return
	}

	srv := web.NewServer(conf, b, m, flags.debug)

	if flags.snapshot != "" {
		if err := runSnapshot(ctx, srv, conf, flags.snapshot); err != nil {
			appLog.Error("snapshot failed", err, "path", flags.snapshot)
			os.Exit(1)
		}
		return
	}

	scheduler, err := startScheduler(ctx, conf, b)
	if err != nil {
		appLog.Error("failed to start scheduler", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	defer func() { <-scheduler.Stop().Done() }()

	if err := srv.Run(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		cancel()
	}
	appLog.Info("evboard exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/evboard/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the board once, print the visible events as JSON and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG snapshot of the board to this path and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and stack traces on panics")

	flag.Parse()

	return cfg
}

// startScheduler re-polls the store on the configured cron schedule.
func startScheduler(ctx context.Context, conf *config.Config, b *board.Board) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(conf.Location()))
	_, err := c.AddFunc(conf.RefreshCron, func() {
		if err := b.Reload(ctx); err != nil {
			appLog.Warn("scheduled reload failed", "err", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("scheduler started", "refresh", conf.RefreshCron)
	return c, nil
}

func dumpBoard(b *board.Board) error {
	st := b.Snapshot()
	visible := pipeline.Apply(st.Events, st.Filters, b.Clock())
	out := struct {
		Count  string `json:"count"`
		Error  string `json:"error,omitempty"`
		Events any    `json:"events"`
	}{pipeline.CountLabel(len(visible)), st.LoadErr, visible}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// runSnapshot serves the board briefly and captures it with Chromium.
func runSnapshot(ctx context.Context, srv *web.Server, conf *config.Config, path string) error {
	srvCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(srvCtx) }()
	defer func() {
		stop()
		if err := <-errCh; err != nil {
			appLog.Error("snapshot server stop failed", err)
		}
	}()

	base := localURL(conf)
	if err := waitHealthy(ctx, base+"health"); err != nil {
		return err
	}

	target := base
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		u, err := url.Parse(base)
		if err != nil {
			return err
		}
		u.User = url.UserPassword(conf.BasicAuth.Username, conf.BasicAuth.Password)
		target = u.String()
	}
	return capture.BoardPNG(ctx, capture.Options{URL: target, OutputPath: path})
}

// localURL is the board root as reachable from this host.
func localURL(conf *config.Config) string {
	host, port, err := net.SplitHostPort(conf.Listen)
	if err != nil {
		return "http://" + conf.Listen + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func waitHealthy(ctx context.Context, healthURL string) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("server at %s not healthy", healthURL)
}
