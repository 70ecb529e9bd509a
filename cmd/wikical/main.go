package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"wikical/internal/config"
	"wikical/internal/feed"
	appLog "wikical/internal/log"
	"wikical/internal/publish"
	"wikical/internal/web"
)

const version = "1.0.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	out        string
	publish    bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.out != "" {
		conf.OutputPath = flags.out
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("wikical starting", "version", version)
	appLog.Debug("effective config",
		"listen", conf.Listen,
		"site_origin", conf.SiteOrigin,
		"uid_domain", conf.UIDDomain,
		"fetch_timeout", conf.Timeout,
		"refresh", conf.RefreshCron,
		"output_path", conf.OutputPath,
		"metrics", conf.Metrics,
		"once", flags.once,
		"publish", flags.publish,
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

	builder := feed.NewBuilder(conf, nil)

	switch {
	case flags.once:
		err = runOnce(ctx, builder, flags.out, os.Stdout)
	case flags.publish:
		var p *publish.Publisher
		p, err = publish.New(builder, conf.OutputPath, conf.RefreshCron)
		if err == nil {
			err = p.Run(ctx)
		}
	default:
		err = web.NewServer(conf, builder).Run(ctx)
	}

	if err != nil {
		appLog.Error("wikical failed", err)
		os.Exit(1)
	}
	appLog.Info("wikical exiting")
}

// runOnce renders the calendar a single time to out, or to stdout when out
// is empty.
func runOnce(ctx context.Context, builder *feed.Builder, out string, stdout io.Writer) error {
	res, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	if out == "" {
		_, err = io.WriteString(stdout, res.Document)
		return err
	}
	if err := config.WriteFileAtomic(out, []byte(res.Document), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	appLog.Info("calendar written", "path", out, "events", res.Extracted, "vevents", res.Rendered)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "", "Path to YAML config file (defaults are used when empty)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Render the calendar once to stdout (or -out) and exit")
	flag.StringVar(&cfg.out, "out", "", "Output file for -once and -publish (overrides config output_path)")
	flag.BoolVar(&cfg.publish, "publish", false, "Write the calendar to the output file on the refresh schedule")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
