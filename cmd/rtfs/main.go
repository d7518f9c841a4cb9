// rtfs mounts a repository of a remote artifact store as a read-only
// filesystem.
//
// Sub-commands:
//
//	rtfs [flags] <repo-name> <mount-point>  Mount a repository (default)
//	rtfs login                              Save credentials to the config file
//
// Configuration comes from RTFS_HOST, RTFS_USER, and RTFS_TOKEN (or a .env
// file, or the config file written by login).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/winfsp/cgofuse/fuse"
	"golang.org/x/term"

	"github.com/sztomi/rtfs/internal/artifactory"
	"github.com/sztomi/rtfs/internal/config"
	"github.com/sztomi/rtfs/internal/fs"
	"github.com/sztomi/rtfs/internal/logging"
	"github.com/sztomi/rtfs/internal/metrics"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "login":
			cmdLogin(os.Args[2:])
			return
		case "mount":
			// Strip "mount" from args and fall through to normal parsing
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	cmdMount()
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: rtfs [flags] <repo-name> <mount-point>\n")
	fmt.Fprintf(os.Stderr, "       rtfs login\n\nFlags:\n")
	flag.PrintDefaults()
}

func cmdMount() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/rtfs/config.yaml)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: json, console")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9632)")
	allowOther := flag.Bool("allow-other", false, "Allow other local users to access the mount")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	repo, mountPoint := flag.Arg(0), flag.Arg(1)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rtfs: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *allowOther {
		cfg.Mount.AllowOther = true
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.Output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "rtfs: initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	// Modes were validated by Load.
	fileMode, _ := config.ParseMode(cfg.Mount.FileMode)
	dirMode, _ := config.ParseMode(cfg.Mount.DirMode)

	client := artifactory.New(artifactory.Config{
		Host:    cfg.Host,
		User:    cfg.User,
		Token:   cfg.Token,
		Timeout: cfg.Remote.Timeout,
	})
	fsys := fs.New(client, repo, fs.Config{FileMode: fileMode, DirMode: dirMode})

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: logging.Middleware(mux)}
		go func() {
			logging.Info("metrics listener started", logging.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("metrics listener failed", logging.Err(err))
			}
		}()
	}

	host := fuse.NewFileSystemHost(fsys)
	host.SetCapReaddirPlus(false)

	opts := []string{"-o", "auto_unmount"}
	if ttl := int(cfg.Mount.AttrTimeout.Seconds()); ttl > 0 {
		opts = append(opts, "-o", fmt.Sprintf("attr_timeout=%d", ttl))
	}
	if cfg.Mount.AllowOther {
		opts = append(opts, "-o", "allow_other")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info("unmounting", logging.String("signal", sig.String()))
		host.Unmount()
	}()

	logging.Info("mounting repository",
		logging.String("host", cfg.Host),
		logging.String("repo", repo),
		logging.String("mountpoint", mountPoint),
	)
	ok := host.Mount(mountPoint, opts)

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsSrv.Shutdown(ctx)
		cancel()
	}
	if !ok {
		logging.Error("mount failed", logging.String("mountpoint", mountPoint))
		logging.Sync()
		os.Exit(1)
	}
}

func cmdLogin(args []string) {
	fset := flag.NewFlagSet("login", flag.ExitOnError)
	configPath := fset.String("config", "", "Path to config file (default: ~/.config/rtfs/config.yaml)")
	fset.Parse(args)

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Server URL: ")
	host, _ := reader.ReadString('\n')
	host = strings.TrimSpace(host)

	fmt.Print("Username: ")
	user, _ := reader.ReadString('\n')
	user = strings.TrimSpace(user)

	fmt.Print("Access token: ")
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading token: %v\n", err)
		os.Exit(1)
	}

	cfg := &config.Config{
		Host:  strings.TrimSuffix(host, "/"),
		User:  user,
		Token: strings.TrimSpace(string(tokenBytes)),
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := artifactory.New(artifactory.Config{
		Host:    cfg.Host,
		User:    cfg.User,
		Token:   cfg.Token,
		Timeout: 15 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: credential check failed: %v\n", err)
		os.Exit(1)
	}

	path, err := config.Save(cfg, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Login successful! Credentials saved to %s\n", path)
}
