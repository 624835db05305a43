package env

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"

	"github.com/luma/disq/connection"
)

const DefaultServer = "127.0.0.1:7711"

type Config struct {
	// Servers lists host:port pairs, DefaultServer when empty
	Servers  []string `env:"DISQ_SERVERS"`
	Password string   `env:"DISQ_PASSWORD"`

	ConnectTimeout  time.Duration `env:"DISQ_CONNECT_TIMEOUT,default=5s"`
	ResponseTimeout time.Duration `env:"DISQ_RESPONSE_TIMEOUT"`

	// Prioritizer is one of conservative, random or null
	Prioritizer     string  `env:"DISQ_PRIORITIZER,default=conservative"`
	Margin          float64 `env:"DISQ_MARGIN,default=0.05"`
	MinJobsToSwitch int64   `env:"DISQ_MIN_JOBS_TO_SWITCH"`

	Debug     bool `env:"DISQ_DEBUG"`
	DebugHTTP bool `env:"DISQ_DEBUG_HTTP"`
}

// LoadConfig reads the config from the environment, after loading
// .env.local when there is one.
func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return LoadConfigWith(ctx, envconfig.OsLookuper())
}

func LoadConfigWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyWorkerFile fills in whatever the environment left unset from file.
func (c *Config) ApplyWorkerFile(file *WorkerFile) {
	if len(c.Servers) == 0 {
		c.Servers = file.Servers
	}

	if c.Password == "" {
		c.Password = file.Password
	}
}

func (c *Config) Credentials() ([]connection.Credentials, error) {
	servers := c.Servers
	if len(servers) == 0 {
		servers = []string{DefaultServer}
	}

	return connection.ParseServers(servers, connection.Credentials{
		Password:        c.Password,
		ConnectTimeout:  c.ConnectTimeout,
		ResponseTimeout: c.ResponseTimeout,
	})
}

func (c *Config) MakePrioritizer() (connection.Prioritizer, error) {
	switch c.Prioritizer {
	case "", "conservative":
		return &connection.ConservativeJobCountPrioritizer{Margin: c.Margin}, nil
	case "random":
		return connection.NewRandomPrioritizer(rand.NewSource(time.Now().UnixNano())), nil
	case "null":
		return connection.NullPrioritizer{}, nil
	default:
		return nil, fmt.Errorf("unknown prioritizer '%s'", c.Prioritizer)
	}
}

// ConnectionOptions builds the options of a connection.Manager.
func (c *Config) ConnectionOptions(log *zap.Logger) (connection.Options, error) {
	servers, err := c.Credentials()
	if err != nil {
		return connection.Options{}, err
	}

	prioritizer, err := c.MakePrioritizer()
	if err != nil {
		return connection.Options{}, err
	}

	return connection.Options{
		Servers:                 servers,
		Prioritizer:             prioritizer,
		MinimumJobsToChangeNode: c.MinJobsToSwitch,
		Log:                     log,
	}, nil
}
