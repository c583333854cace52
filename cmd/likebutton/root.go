package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/clock"
	"github.com/likecoin/likecoin-button/internal/config"
	"github.com/likecoin/likecoin-button/internal/likecoin"
	"github.com/likecoin/likecoin-button/internal/observability"
	"github.com/likecoin/likecoin-button/internal/referrer"
	"github.com/likecoin/likecoin-button/internal/widget"
)

var (
	version = "dev"
	commit  = "unknown"
)

// cli carries what the commands share. Tests swap loadConfig and newLogger.
type cli struct {
	loadConfig func(ctx context.Context) (config.Config, error)
	newLogger  func(level string) (*zap.Logger, error)
	clock      clock.Clock

	verbose  bool
	referrer string
	tz       string
}

func defaultCLI() *cli {
	return &cli{
		loadConfig: func(ctx context.Context) (config.Config, error) { return config.Load(ctx) },
		newLogger: func(level string) (*zap.Logger, error) {
			return observability.NewLoggerTo(level, "stderr")
		},
		clock: clock.New(),
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "likebutton",
		Short: "Operator tool for LikeCoin like button widgets",
		Long: `likebutton runs the same widget state machine the embed page uses, without a browser.
It reads the LIKEBUTTON_* environment (and .env) for the backend endpoints.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&c.referrer, "referrer", "r", "", "page URL the button is embedded in")
	root.PersistentFlags().StringVar(&c.tz, "tz", "", "viewer UTC offset in hours")

	root.AddCommand(
		newStatusCmd(c),
		newLikeCmd(c),
		newSuperLikeCmd(c),
		newURLsCmd(c),
		newShareCmd(c),
		newLikeLinkCmd(c),
	)
	return root
}

// env is what a command needs to talk to the backends.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	client *likecoin.Client
}

func (c *cli) env(ctx context.Context) (*env, error) {
	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	logger, err := c.newLogger(level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &env{
		cfg:    cfg,
		logger: logger,
		client: likecoin.NewClient(likecoin.Options{
			LikeCoinAPI:  cfg.API.LikeCoinAPI,
			MiscAPI:      cfg.API.MiscAPI,
			LikerLandAPI: cfg.API.LikerLandAPI,
			Timeout:      cfg.API.Timeout,
		}),
	}, nil
}

// openWidget builds and syncs a widget for id the way the embed page does. Sync failures
// are logged and leave the defaults.
func (c *cli) openWidget(ctx context.Context, e *env, id string) (*widget.Widget, error) {
	rc := c.pageContext()
	creator, err := widget.LoadCreator(ctx, e.client, id, rc.SocialType(), nil)
	if err != nil {
		return nil, err
	}
	sess, err := e.client.NewSession()
	if err != nil {
		return nil, err
	}
	wd, err := widget.New(widget.Options{
		ID:      id,
		Creator: creator,
		Context: rc,
		API:     sess,
		Clock:   c.clock,
		Logger:  e.logger,
		Links: widget.Links{
			LikeCoHostname:   e.cfg.API.LikeCoHostname,
			LikerLandURLBase: e.cfg.API.LikerLandURLBase,
		},
		DebounceDelay:      e.cfg.Widget.Debounce,
		CooldownStartDelay: e.cfg.Widget.CooldownStartDelay,
		CooldownTick:       e.cfg.Widget.CooldownTick,
	})
	if err != nil {
		return nil, err
	}
	syncCtx, cancel := context.WithTimeout(ctx, e.cfg.API.Timeout)
	defer cancel()
	_ = wd.Sync(syncCtx)
	return wd, nil
}

// pageContext stands in for an embed page load. The CLI runs on the viewer's machine, so
// its local zone is the viewer's.
func (c *cli) pageContext() referrer.Context {
	return referrer.Context{
		SessionID:      uuid.New(),
		Referrer:       referrer.Normalize(c.referrer),
		Timezone:       referrer.Timezone(c.tz, c.clock.Now()),
		ClientTimezone: true,
		CookieSupport:  true,
	}
}

// shutdown closes wd, sending anything still pending, and waits for the calls to finish.
func shutdown(wd *widget.Widget, grace time.Duration) {
	_ = wd.Close()
	done := make(chan struct{})
	go func() {
		wd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
