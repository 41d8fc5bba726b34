package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mytube/internal/adapters/catalog"
	"mytube/internal/adapters/download"
	emailPkg "mytube/internal/adapters/email"
	web "mytube/internal/adapters/http"
	"mytube/internal/adapters/http/perf"
	"mytube/internal/adapters/media"
	"mytube/internal/adapters/storage"
	outboxStore "mytube/internal/adapters/storage/outbox"
	parentalStore "mytube/internal/adapters/storage/parental"
	progressStore "mytube/internal/adapters/storage/progress"
	watchlogStore "mytube/internal/adapters/storage/watchlog"
	"mytube/internal/application/orchestrators"
	"mytube/internal/config"
	"mytube/internal/domain/parental"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mytube",
	Short: "MyTube - a video kiosk with a per-session limit",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			cfgFile = os.Getenv("MYTUBE_CONFIG")
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		initLogging(verbose, cfg.IsProduction())
		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, env MYTUBE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	downloadCmd.Flags().StringP("url", "u", "", "YouTube video URL")
	downloadCmd.Flags().StringP("name", "n", "", "base name for the saved video (without extension)")
	downloadCmd.Flags().StringP("output-dir", "o", "", "directory for the downloaded source (default: paths.videos_folder)")
	downloadCmd.MarkFlagRequired("url")
	downloadCmd.MarkFlagRequired("name")

	processCmd.Flags().Bool("force", false, "re-cut clips that already exist")

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd, downloadCmd, processCmd, hashPINCmd, configCmd, versionCmd)
}

// initLogging installs the default slog handler: text for a terminal, JSON
// in production.
func initLogging(verbose, production bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if production {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk web app",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		serve(cmd.Context(), config.FromContext(cmd.Context()))
	},
}

func serve(ctx context.Context, cfg *config.Config) {
	collector := perf.NewCollector(perf.DefaultRingSize)

	db, err := storage.Open(cfg.Paths.HistoryDB)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	timed := storage.NewTimedDB(db, collector)
	history := watchlogStore.NewSQLiteStore(timed)

	opts := catalog.LoadOptions{ThumbnailAt: cfg.ThumbnailAt()}
	if exec, err := media.New(mediaOptions(cfg), collector); err != nil {
		slog.Warn("startup_event", "event", "ffmpeg_unavailable", "error", err)
	} else {
		opts.Generator = exec
	}
	clips, err := catalog.Load(ctx, cfg.Paths.ProcessedVideosFolder, opts)
	if err != nil {
		log.Fatalf("failed to load clips: %v", err)
	}

	sessionDeps := orchestrators.SessionDeps{
		ProgressStore: progressStore.NewFileStore(cfg.Paths.StateFile, collector),
		Catalog:       clips,
		Terminal: catalog.TerminalMedia{
			OneMorePath:  cfg.Paths.OnlyOneMoreVideo,
			FinishedPath: cfg.Paths.FinishedVideo,
		},
		DefaultMaxVideos: cfg.WebApp.NMaxVideos,
		History:          history,
	}

	outbox := outboxStore.NewSQLiteStore(timed)
	var (
		notifier  *orchestrators.GuardianNotifier
		processor *orchestrators.OutboxProcessor
	)
	if cfg.Parental.GuardianEmail != "" {
		sender := emailSender(cfg)
		processor = orchestrators.NewOutboxProcessor(orchestrators.OutboxDeps{Store: outbox, Sender: sender})
		outboxStopCh := make(chan struct{})
		orchestrators.StartBackgroundWorker(processor, 1*time.Minute, outboxStopCh)
		defer close(outboxStopCh)

		notifier = orchestrators.NewGuardianNotifier(orchestrators.NotifyDeps{
			Sender:        sender,
			Outbox:        processor,
			GuardianEmail: cfg.Parental.GuardianEmail,
			From:          cfg.Email.From,
			ReplyTo:       cfg.Email.ReplyTo,
			Title:         cfg.WebApp.Title,
		}, clips, time.Now)
		sessionDeps.Notifier = notifier
	}

	if _, err := orchestrators.NewSession(ctx, sessionDeps, cfg.WebApp.ResetOnStart); err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	csrfKey, err := web.LoadCSRFKey(cfg.CSRFKey, cfg.IsProduction())
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.Parental.PINHash == "" {
		slog.Warn("startup_event", "event", "parental_open", "hint", "set parental.pin_hash to lock the parental controls")
	}

	deps := web.Deps{
		Session:     sessionDeps,
		Catalog:     clips,
		History:     history,
		Guard:       parentalStore.NewSQLiteStore(timed),
		OutboxStore: outbox,
		Collector:   collector,
		Settings: web.Settings{
			Title:          cfg.WebApp.Title,
			Information:    cfg.WebApp.Information,
			LimitChoices:   cfg.WebApp.LimitChoices,
			ColorDone:      cfg.WebApp.ColorDone,
			ColorUndone:    cfg.WebApp.ColorUndone,
			PINHash:        cfg.Parental.PINHash,
			SessionTTL:     cfg.SessionTTL(),
			CSRFKey:        csrfKey,
			TrustedOrigins: trustedOrigins(cfg),
		},
	}
	if processor != nil {
		deps.Outbox = processor
	}
	handler, err := web.NewMux(deps)
	if err != nil {
		log.Fatalf("failed to build handler: %v", err)
	}

	addr := cfg.ListenAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-stop.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err)
		}
	}()

	log.Printf("MyTube %s starting on %s (env=%s, clips=%d)", version, addr, cfg.Env, clips.Size())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	if notifier != nil {
		notifier.Wait()
	}
	slog.Info("shutdown_complete")
}

// trustedOrigins lets the kiosk be opened by LAN address as well as localhost.
func trustedOrigins(cfg *config.Config) []string {
	port := fmt.Sprint(cfg.WebApp.Server.Port)
	origins := []string{"localhost:" + port, "127.0.0.1:" + port}
	if host, err := os.Hostname(); err == nil {
		origins = append(origins, host+":"+port)
	}
	return origins
}

func emailSender(cfg *config.Config) emailPkg.Sender {
	if cfg.ResendKey != "" {
		slog.Info("startup_event", "event", "email_sender", "sender", "resend")
		return emailPkg.NewResendSender(cfg.ResendKey, cfg.Email.From)
	}
	if cfg.IsProduction() {
		slog.Warn("startup_event", "event", "email_sender", "sender", "noop", "hint", "MYTUBE_RESEND_KEY is not set; guardian emails are DISABLED")
	} else {
		slog.Info("startup_event", "event", "email_sender", "sender", "noop")
	}
	return emailPkg.NewNoopSender()
}

func mediaOptions(cfg *config.Config) media.Options {
	return media.Options{
		FFmpegPath:  cfg.FFmpeg.FFmpegPath,
		FFprobePath: cfg.FFmpeg.FFprobePath,
		Threads:     cfg.FFmpeg.Threads,
	}
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a YouTube video and add it to the processed folder whole",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		url, _ := cmd.Flags().GetString("url")
		name, _ := cmd.Flags().GetString("name")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		if outputDir == "" {
			outputDir = cfg.Paths.VideosFolder
		}

		exec, err := media.New(mediaOptions(cfg), nil)
		if err != nil {
			return err
		}
		res, err := orchestrators.ExecuteDownloadAndPass(cmd.Context(), orchestrators.DownloadAndPassInput{
			URL:          url,
			Name:         name,
			VideosDir:    outputDir,
			ProcessedDir: cfg.Paths.ProcessedVideosFolder,
			ThumbnailAt:  cfg.ThumbnailAt(),
		}, orchestrators.DownloadAndPassDeps{
			Downloader: download.New(download.Options{Executable: cfg.Download.YtdlpPath, Format: cfg.Download.Format}),
			Media:      exec,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "source:    %s\nclip:      %s\nthumbnail: %s\n", res.SourcePath, res.ClipPath, res.ThumbnailPath)
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Cut every source video into clips using its cut sheet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		force, _ := cmd.Flags().GetBool("force")

		exec, err := media.New(mediaOptions(cfg), nil)
		if err != nil {
			return err
		}
		res, err := orchestrators.ExecuteProcessVideos(cmd.Context(), orchestrators.ProcessVideosInput{
			VideosDir:    cfg.Paths.VideosFolder,
			ProcessedDir: cfg.Paths.ProcessedVideosFolder,
			ThumbnailAt:  cfg.ThumbnailAt(),
			Force:        force,
		}, orchestrators.ProcessVideosDeps{Media: exec})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "videos: %d, clips cut: %d, already present: %d\n", res.Videos, res.Clips, res.Existing)
		for _, s := range res.Skipped {
			fmt.Fprintf(out, "no cut sheet: %s\n", s)
		}
		for _, f := range res.Failed {
			fmt.Fprintf(out, "failed: %s\n", f)
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d item(s) failed", len(res.Failed))
		}
		return nil
	},
}

var hashPINCmd = &cobra.Command{
	Use:   "hash-pin PIN",
	Short: "Print the bcrypt hash to put in parental.pin_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := parental.HashPIN(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the current settings to a config file (default ./config.yaml)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.FromContext(cmd.Context()).Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "mytube", version)
	},
}
