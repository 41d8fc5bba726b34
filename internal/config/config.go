package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"mytube/internal/domain/progress"
)

type contextKey string

const configKey contextKey = "config"

// Config mirrors config.yaml.
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	WebApp   WebAppConfig   `yaml:"webapp"`
	Parental ParentalConfig `yaml:"parental"`
	Email    EmailConfig    `yaml:"email"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Download DownloadConfig `yaml:"download"`

	// Set from the environment only.
	Env       string `yaml:"-"`
	Addr      string `yaml:"-"`
	CSRFKey   string `yaml:"-"`
	ResendKey string `yaml:"-"`
}

type PathsConfig struct {
	VideosFolder          string `yaml:"videos_folder"`
	ProcessedVideosFolder string `yaml:"processed_videos_folder"`
	OnlyOneMoreVideo      string `yaml:"only_one_more_video"`
	FinishedVideo         string `yaml:"finished_video"`
	StateFile             string `yaml:"state_file"`
	HistoryDB             string `yaml:"history_db"`
}

type WebAppConfig struct {
	Title        string       `yaml:"title"`
	Information  string       `yaml:"information"`
	NMaxVideos   int          `yaml:"n_max_videos"`
	LimitChoices []int        `yaml:"limit_choices"`
	ColorDone    string       `yaml:"color_done"`
	ColorUndone  string       `yaml:"color_undone"`
	ResetOnStart bool         `yaml:"reset_on_start"`
	Server       ServerConfig `yaml:"server"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ParentalConfig struct {
	PINHash        string `yaml:"pin_hash"`
	GuardianEmail  string `yaml:"guardian_email"`
	SessionMinutes int    `yaml:"session_minutes"`
}

type EmailConfig struct {
	From    string `yaml:"from"`
	ReplyTo string `yaml:"reply_to"`
}

type FFmpegConfig struct {
	FFmpegPath         string `yaml:"ffmpeg_path"`
	FFprobePath        string `yaml:"ffprobe_path"`
	Threads            int    `yaml:"threads"`
	ThumbnailAtSeconds int    `yaml:"thumbnail_at_seconds"`
}

type DownloadConfig struct {
	YtdlpPath string `yaml:"ytdlp_path"`
	Format    string `yaml:"format"`
}

// Load reads configuration from file or returns defaults. Environment
// overrides are applied last.
// PRE: path is empty or names a YAML file
// POST: Returns a validated config; a missing file yields the defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file, creating its directory. Env-only
// secrets are not written.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.WebApp.NMaxVideos <= 0 || c.WebApp.NMaxVideos > progress.MaxLimit {
		return fmt.Errorf("webapp.n_max_videos must be between 1 and %d", progress.MaxLimit)
	}
	if c.Addr == "" && (c.WebApp.Server.Port <= 0 || c.WebApp.Server.Port > 65535) {
		return fmt.Errorf("webapp.server.port %d is out of range", c.WebApp.Server.Port)
	}
	for _, n := range c.WebApp.LimitChoices {
		if n <= 0 || n > progress.MaxLimit {
			return fmt.Errorf("webapp.limit_choices contains %d; choices must be between 1 and %d", n, progress.MaxLimit)
		}
	}
	if c.FFmpeg.ThumbnailAtSeconds < 0 {
		return errors.New("ffmpeg.thumbnail_at_seconds cannot be negative")
	}
	if c.Parental.SessionMinutes < 0 {
		return errors.New("parental.session_minutes cannot be negative")
	}
	if c.Parental.PINHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Parental.PINHash)); err != nil {
			return fmt.Errorf("parental.pin_hash is not a bcrypt hash (use mytube hash-pin): %w", err)
		}
	}
	return nil
}

// IsProduction reports whether MYTUBE_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ListenAddr is MYTUBE_ADDR, or host:port from the file.
func (c *Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return net.JoinHostPort(c.WebApp.Server.Host, strconv.Itoa(c.WebApp.Server.Port))
}

// ThumbnailAt is the thumbnail frame offset.
func (c *Config) ThumbnailAt() time.Duration {
	return time.Duration(c.FFmpeg.ThumbnailAtSeconds) * time.Second
}

// SessionTTL is how long an unlocked parental panel stays open.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Parental.SessionMinutes) * time.Minute
}

func (c *Config) applyEnv(getenv func(string) string) {
	envOrDefault := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}
	c.Env = envOrDefault("MYTUBE_ENV", "development")
	c.Addr = envOrDefault("MYTUBE_ADDR", c.Addr)
	c.CSRFKey = envOrDefault("MYTUBE_CSRF_KEY", c.CSRFKey)
	c.ResendKey = envOrDefault("MYTUBE_RESEND_KEY", c.ResendKey)
	c.Paths.StateFile = envOrDefault("MYTUBE_STATE_FILE", c.Paths.StateFile)
}

func defaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			VideosFolder:          "videos",
			ProcessedVideosFolder: "videos/processed",
			OnlyOneMoreVideo:      "videos/info/one_more.mp4",
			FinishedVideo:         "videos/info/finished.mp4",
			StateFile:             "webapp_state.json",
			HistoryDB:             "mytube.db",
		},
		WebApp: WebAppConfig{
			Title:        "MyTube",
			NMaxVideos:   4,
			LimitChoices: []int{4, 5, 6, 7, 8},
			ColorDone:    "#fca903",
			ColorUndone:  "#03fcdf",
			ResetOnStart: true,
			Server: ServerConfig{
				Host: "0.0.0.0",
				Port: 7860,
			},
		},
		Parental: ParentalConfig{
			SessionMinutes: 30,
		},
		Email: EmailConfig{
			From: "MyTube <mytube@localhost>",
		},
		FFmpeg: FFmpegConfig{
			ThumbnailAtSeconds: 10,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".mytube", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// WithConfig stores config in context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
