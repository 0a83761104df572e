package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port         string   `mapstructure:"PORT"`
	Env          string   `mapstructure:"ENV"`
	WorkbookPath string   `mapstructure:"WORKBOOK_PATH"`
	SheetName    string   `mapstructure:"SHEET_NAME"`
	ArtifactRoot string   `mapstructure:"ARTIFACT_ROOT"`
	PublicHost   string   `mapstructure:"PUBLIC_HOST"`
	RendererCmd  string   `mapstructure:"RENDERER_CMD"`
	GitDir       string   `mapstructure:"GIT_DIR"`
	GitRemote    string   `mapstructure:"GIT_REMOTE"`
	GitBranch    string   `mapstructure:"GIT_BRANCH"`
	JournalPath  string   `mapstructure:"JOURNAL_PATH"`
	DashboardURL string   `mapstructure:"DASHBOARD_URL"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("WORKBOOK_PATH", "Patients.xlsx")
	v.SetDefault("SHEET_NAME", "Patients")
	v.SetDefault("ARTIFACT_ROOT", "QR_Patients")
	v.SetDefault("GIT_DIR", ".")
	v.SetDefault("GIT_REMOTE", "origin")
	v.SetDefault("GIT_BRANCH", "master")
	v.SetDefault("JOURNAL_PATH", "labsync.db")
	v.SetDefault("DASHBOARD_URL", "https://vercel.com/dashboard")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("WORKBOOK_PATH")
	v.BindEnv("SHEET_NAME")
	v.BindEnv("ARTIFACT_ROOT")
	v.BindEnv("PUBLIC_HOST")
	v.BindEnv("RENDERER_CMD")
	v.BindEnv("GIT_DIR")
	v.BindEnv("GIT_REMOTE")
	v.BindEnv("GIT_BRANCH")
	v.BindEnv("JOURNAL_PATH")
	v.BindEnv("DASHBOARD_URL")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// RendererArgv splits RENDERER_CMD into command and fixed arguments. The
// patient id is appended per invocation.
func (c *Config) RendererArgv() []string {
	return strings.Fields(c.RendererCmd)
}

// Validate checks that the configuration is safe to run. The public host
// and renderer command have no sensible defaults; refusing to start beats
// generating QR codes that point nowhere.
func (c *Config) Validate() error {
	if c.PublicHost == "" {
		return fmt.Errorf("PUBLIC_HOST is required (the host serving the pushed report copies)")
	}
	if strings.Contains(c.PublicHost, "://") {
		return fmt.Errorf("PUBLIC_HOST must be a bare host name, got %q", c.PublicHost)
	}
	if len(c.RendererArgv()) == 0 {
		return fmt.Errorf("RENDERER_CMD is required (external command that renders patient_<id>.html)")
	}
	if c.WorkbookPath == "" {
		return fmt.Errorf("WORKBOOK_PATH is required")
	}
	return nil
}
