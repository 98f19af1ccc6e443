package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optimode/mailprobe"
	"github.com/optimode/mailprobe/cache"
	"github.com/optimode/mailprobe/mx"
)

type verifyFlags struct {
	config           string
	db               string
	key              string
	upstream         string
	redis            string
	sender           string
	timeout          time.Duration
	mx               bool
	deliver          bool
	rejectDisposable bool
	interactive      bool
	debug            bool
}

func init() {
	vf := new(verifyFlags)
	verifyCmd := &cobra.Command{
		Use:   "verify [flags] ADDRESS...",
		Short: "Verify one or more email addresses.",
		Args: func(cmd *cobra.Command, args []string) error {
			if vf.interactive && len(args) > 0 {
				return errors.New("interactive mode takes no addresses")
			}
			if !vf.interactive && len(args) == 0 {
				return errors.New("requires at least one address, or -i")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), vf, args)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	fs := verifyCmd.Flags()
	fs.StringVarP(&vf.config, "config", "c", "", "config file")
	fs.StringVar(&vf.db, "db", "", "directory DSN (postgres DSN or sqlite path)")
	fs.StringVar(&vf.key, "key", "", "AES key for stored directory credentials")
	fs.StringVar(&vf.upstream, "upstream", "", "DNS upstream for MX queries, host[:port]")
	fs.StringVar(&vf.redis, "redis", "", "redis URL for shared caches")
	fs.StringVar(&vf.sender, "sender", "", "MAIL FROM address for delivery attempts")
	fs.DurationVar(&vf.timeout, "timeout", 0, "timeout per network attempt")
	fs.BoolVar(&vf.mx, "mx", false, "resolve routes and probe exchanger reachability")
	fs.BoolVar(&vf.deliver, "deliver", false, "attempt delivery up to RCPT TO (implies --mx)")
	fs.BoolVar(&vf.rejectDisposable, "reject-disposable", false, "treat disposable domains as invalid")
	fs.BoolVarP(&vf.interactive, "interactive", "i", false, "prompt for addresses and options in a loop")
	fs.BoolVar(&vf.debug, "debug", false, "verbose development logging")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(ctx context.Context, vf *verifyFlags, args []string) error {
	cfg, err := loadConfig(vf.config)
	if err != nil {
		return err
	}
	mergeFlags(cfg, vf)

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if vf.interactive {
		return runInteractive(ctx, vf, cfg, logger)
	}

	v, cleanup, err := buildVerifier(cfg, vf, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, address := range args {
		res, err := v.Verify(ctx, address)
		if err != nil {
			return err
		}
		printResult(res)
	}
	return nil
}

func mergeFlags(cfg *config, vf *verifyFlags) {
	if vf.db != "" {
		cfg.DB = vf.db
	}
	if vf.key != "" {
		cfg.Key = vf.key
	}
	if vf.upstream != "" {
		cfg.Upstream = vf.upstream
	}
	if vf.redis != "" {
		cfg.Redis = vf.redis
	}
	if vf.sender != "" {
		cfg.Sender = vf.sender
	}
	if vf.timeout > 0 {
		cfg.Timeout = vf.timeout
	}
	if vf.debug {
		cfg.Debug = true
	}
}

// buildVerifier assembles a Verifier from the merged configuration. The
// returned cleanup closes the verifier and everything opened for it.
func buildVerifier(cfg *config, vf *verifyFlags, logger *zap.Logger) (*mailprobe.Verifier, func(), error) {
	v := mailprobe.New().WithLogger(logger)

	var cleanups []func()
	cleanup := func() {
		_ = v.Close()
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if vf.rejectDisposable {
		v.WithDisposableCheck()
	}
	if vf.deliver {
		v.WithDelivery(mailprobe.DeliveryOptions{
			Sender:  cfg.Sender,
			Timeout: cfg.Timeout,
		})
	} else if vf.mx {
		v.WithExchangerCheck(mailprobe.ExchangerOptions{
			Timeout: cfg.Timeout,
		})
	}

	if cfg.DB != "" {
		store, closeDB, err := openDirectory(cfg, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeDB)
		v.WithDirectory(store)
	}

	if cfg.Upstream != "" {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		v.WithResolver(mx.NewClient(cfg.Upstream, timeout))
	}

	if cfg.Redis != "" {
		ropts, err := redis.ParseURL(cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		client := redis.NewClient(ropts)
		cleanups = append(cleanups, func() { _ = client.Close() })

		resolutions, err := cache.NewRedis[mailprobe.Resolution](cache.RedisOptions{
			Client: client,
			Prefix: "mailprobe:resolution:",
			Logger: logger,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		reachables, err := cache.NewRedis[bool](cache.RedisOptions{
			Client: client,
			Prefix: "mailprobe:reachable:",
			Logger: logger,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		v.WithCaches(resolutions, reachables)
	}

	return v, cleanup, nil
}

func printResult(res mailprobe.Result) {
	line := fmt.Sprintf("%s: %s", res.Email, res.Outcome)
	if len(res.Checks) > 0 {
		last := res.Checks[len(res.Checks)-1]
		line += fmt.Sprintf(" (%s: %s)", last.Stage, last.Details)
	}
	fmt.Println(line)
}

// runInteractive prompts for an address and per-address options in a
// loop, the way the interactive checker traditionally behaves, until
// input ends.
func runInteractive(ctx context.Context, vf *verifyFlags, cfg *config, logger *zap.Logger) error {
	in := bufio.NewScanner(os.Stdin)
	prompt := func(p string) (string, bool) {
		fmt.Print(p)
		if !in.Scan() {
			return "", false
		}
		return strings.TrimSpace(in.Text()), true
	}

	for {
		address, ok := prompt("Enter email for validation: ")
		if !ok {
			break
		}
		mxAnswer, ok := prompt("Validate MX record? [yN] ")
		if !ok {
			break
		}
		deliverAnswer, ok := prompt("Try to contact server for address validation? [yN] ")
		if !ok {
			break
		}
		disposableAnswer, ok := prompt("Can the email be disposable? [Yn] ")
		if !ok {
			break
		}
		sender, ok := prompt("sending_email? [string] ")
		if !ok {
			break
		}

		loopFlags := *vf
		loopFlags.mx = strings.EqualFold(mxAnswer, "y")
		loopFlags.deliver = strings.EqualFold(deliverAnswer, "y")
		loopFlags.rejectDisposable = strings.EqualFold(disposableAnswer, "n")
		loopCfg := *cfg
		if sender != "" {
			loopCfg.Sender = sender
		}

		v, cleanup, err := buildVerifier(&loopCfg, &loopFlags, logger)
		if err != nil {
			return err
		}
		res, err := v.Verify(ctx, address)
		cleanup()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		switch res.Outcome {
		case mailprobe.Valid:
			fmt.Println("Valid!")
		case mailprobe.Unknown:
			fmt.Println("I'm not sure.")
		default:
			fmt.Println("Invalid!")
		}
	}
	return in.Err()
}
