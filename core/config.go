package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		WorkDir      string
		RollbarToken string

		DefaultFromEmail string
		SendgridApiKey   string

		// SystemsFile optionally overrides the embedded systems catalog.
		SystemsFile string
		// OverallPolicy selects how the headline score is derived: "simple" or "weighted".
		OverallPolicy string
		HistoryLimit  int

		Server   ServerConfig
		Database DatabaseConfig
		Kafka    KafkaConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		LiveInterval              time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite file path
	}

	KafkaConfig struct {
		Brokers []string
		Topic   string
	}
)

func (c *Config) DefaultFromAddress() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
	}
	return *addr
}

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, fmt.Sprint(d.Port))
}

func (d DatabaseConfig) IsSQLite() bool {
	return d.Engine == "sqlite"
}

func newViper() *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "EduPulse")
	v.SetDefault("secretKey", "b1x9-vk)enq$+22=pz&aoxh2(h!x)#*d4(#ug4h^$cegm8mxt")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("defaultFromEmail", "EduPulse <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("systemsFile", "")
	v.SetDefault("overallPolicy", "simple")
	v.SetDefault("historyLimit", 52)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.liveInterval", 30*time.Second)

	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "edupulse")
	v.SetDefault("database.user", "edupulse")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "edupulse.db")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "edupulse.weekly-snapshots")

	// nested keys are read from env as PREFIX_SERVER_PORT etc.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// NewConfig loads the configuration from defaults, the optional config/.env.<env> file and the environment.
func NewConfig() *Config {
	v := newViper()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		RollbarToken:     v.GetString("rollbarToken"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		SystemsFile:      v.GetString("systemsFile"),
		OverallPolicy:    strings.ToLower(v.GetString("overallPolicy")),
		HistoryLimit:     v.GetInt("historyLimit"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetInt("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			LiveInterval:              v.GetDuration("server.liveInterval"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Kafka: KafkaConfig{
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
	}
	return conf
}

// NewTestConfig returns a Config suitable for tests: sqlite in memory, no external services.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "EduPulse",
		SecretKey:        "secret",
		DefaultFromEmail: "noreply@localhost",
		OverallPolicy:    "simple",
		HistoryLimit:     52,
		Server: ServerConfig{
			Port:                      8000,
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			LiveInterval:              30 * time.Second,
		},
		Database: DatabaseConfig{Engine: "sqlite", Path: ":memory:"},
		Kafka:    KafkaConfig{Topic: "edupulse.weekly-snapshots"},
	}
}
