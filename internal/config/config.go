package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/davecgh/go-spew/spew"
)

// ConfigStruct is the glue for all configuration sections
type ConfigStruct struct {
	Common CommonConf `toml:"common"`
	Server ServerConf `toml:"server"`
	Email  EmailConf  `toml:"email"`
	Kafka  KafkaConf  `toml:"kafka"`
}

// CommonConf is the data required for all services
type CommonConf struct {
	Debug  bool   `toml:"debug"`
	LogDir string `toml:"log_dir"`
	DBDSN  string `toml:"db_dsn"`

	// FlagsPath is where runtime flags are persisted
	FlagsPath string `toml:"flags_path"`
}

type ServerConf struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type EmailConf struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

type KafkaConf struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

var (
	Common CommonConf
	Server ServerConf
	Email  EmailConf
	Kafka  KafkaConf
)

func defaults() ConfigStruct {
	return ConfigStruct{
		Common: CommonConf{
			LogDir:    "/var/log/givemart",
			DBDSN:     "sslmode=disable user=givemart dbname=givemart",
			FlagsPath: "./flags.json",
		},
		Server: ServerConf{Host: "localhost", Port: 8070},
		Kafka:  KafkaConf{Brokers: []string{"localhost:9092"}, Topic: "givemart.payouts"},
	}
}

// Load reads the TOML config at path. A missing file leaves the defaults in place.
// Secrets can be overridden through GIVEMART_DB_DSN and GIVEMART_SMTP_PASSWORD.
func Load(path string) error {
	conf := defaults()
	md, err := toml.DecodeFile(path, &conf)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("couldn't decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("There were a few undecoded config keys")
		spew.Dump(undecoded)
	}

	if v := strings.TrimSpace(os.Getenv("GIVEMART_DB_DSN")); v != "" {
		conf.Common.DBDSN = v
	}
	if v := os.Getenv("GIVEMART_SMTP_PASSWORD"); v != "" {
		conf.Email.Password = v
	}

	Common = conf.Common
	Server = conf.Server
	Email = conf.Email
	Kafka = conf.Kafka
	return nil
}

// Save writes the current config back, filling in defaults for a fresh install.
func Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(file)
	enc.Indent = "\t"
	if err := enc.Encode(ConfigStruct{Common: Common, Server: Server, Email: Email, Kafka: Kafka}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
