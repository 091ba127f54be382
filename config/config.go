package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/catalog"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/server"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/kafka"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/logger"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/postgres"
)

type Sweep struct {
	Interval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	LeadWindows []int         `envconfig:"SWEEP_LEAD_MINUTES" default:"30,10"`
}

// LeadDurations converts the configured lead minutes into durations.
func (s Sweep) LeadDurations() []time.Duration {
	ds := make([]time.Duration, 0, len(s.LeadWindows))
	for _, m := range s.LeadWindows {
		ds = append(ds, time.Duration(m)*time.Minute)
	}
	return ds
}

type Config struct {
	Server   server.Config
	Database postgres.Database
	Kafka    kafka.Config
	Catalog  catalog.Config
	Sweep    Sweep
	Log      logger.Log
}

type Option func(*Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(c *Config) { c.Log.LogLevel = level }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.Server.WriteTimeout = d }
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		if err := envconfig.Process("", &config); err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return &cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
