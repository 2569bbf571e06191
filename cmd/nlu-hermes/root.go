package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/nlu-hermes/internal/infrastructure/config"
)

// configEnv names the config file when --config is not given.
const configEnv = config.EnvPrefix + "CONFIG"

// flagValues holds the raw command-line values. Only flags the user set
// override the loaded configuration.
type flagValues struct {
	configPath string

	host     string
	port     int
	username string
	password string
	tls      bool
	clientID string

	intentGraph    string
	writeGraph     bool
	siteIDs        []string
	casing         string
	noFuzzy        bool
	replaceNumbers bool
	language       string

	sentences  []string
	watchDelay int

	httpPort int
	debug    bool
}

func newRootCmd() *cobra.Command {
	var fv flagValues

	cmd := &cobra.Command{
		Use:   "nlu-hermes",
		Short: "Hermes MQTT bridge for intent recognition",
		Long: `nlu-hermes listens for hermes/nlu/query messages, recognises the intent
of the text against a graph trained from sentence templates, and publishes
the result. Training requests arrive on rhasspy/nlu/<siteId>/train.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), &fv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	addFlags(cmd.Flags(), &fv)
	cmd.AddCommand(newTokenCmd())

	return cmd
}

// addFlags binds the command-line flags to fv.
func addFlags(f *pflag.FlagSet, fv *flagValues) {
	f.StringVar(&fv.configPath, "config", "", "YAML config file (env "+configEnv+")")

	f.StringVar(&fv.host, "host", "", "MQTT broker host (default localhost)")
	f.IntVar(&fv.port, "port", 0, "MQTT broker port (default 1883)")
	f.StringVar(&fv.username, "username", "", "MQTT username")
	f.StringVar(&fv.password, "password", "", "MQTT password")
	f.BoolVar(&fv.tls, "tls", false, "connect to the broker over TLS")
	f.StringVar(&fv.clientID, "client-id", "", "MQTT client id (default nlu-hermes-<random>)")

	f.StringVar(&fv.intentGraph, "intent-graph", "", "intent graph file (.json, or .db/.sqlite for SQLite)")
	f.BoolVar(&fv.writeGraph, "write-graph", false, "write the graph back after a successful train")
	f.StringArrayVar(&fv.siteIDs, "site-id", nil, "only handle this site (repeatable)")
	f.StringVar(&fv.casing, "casing", "", "word casing: ignore, upper or lower")
	f.BoolVar(&fv.noFuzzy, "no-fuzzy", false, "disable fuzzy recognition")
	f.BoolVar(&fv.replaceNumbers, "replace-numbers", false, "spell out digits before matching")
	f.StringVar(&fv.language, "language", "", "language for --replace-numbers (default en)")

	f.StringArrayVar(&fv.sentences, "sentences", nil, "sentence file to train from and watch (repeatable)")
	f.IntVar(&fv.watchDelay, "watch-delay", 0, "sentence watch debounce in milliseconds (default 1000)")

	f.IntVar(&fv.httpPort, "http-port", 0, "serve /health, /metrics and /api/v1 on this port")
	f.BoolVar(&fv.debug, "debug", false, "enable debug logging")
}

// loadConfig merges defaults, the config file, the environment and the
// flags that were set, then validates the result.
func loadConfig(flags *pflag.FlagSet, fv *flagValues) (*config.Config, error) {
	path := fv.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	applyFlags(cfg, flags, fv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet, fv *flagValues) {
	set := flags.Changed

	if set("host") {
		cfg.MQTT.Broker.Host = fv.host
	}
	if set("port") {
		cfg.MQTT.Broker.Port = fv.port
	}
	if set("username") {
		cfg.MQTT.Auth.Username = fv.username
	}
	if set("password") {
		cfg.MQTT.Auth.Password = fv.password
	}
	if set("tls") {
		cfg.MQTT.Broker.TLS = fv.tls
	}
	if set("client-id") {
		cfg.MQTT.Broker.ClientID = fv.clientID
	}

	if set("intent-graph") {
		cfg.NLU.IntentGraph = fv.intentGraph
	}
	if set("write-graph") {
		cfg.NLU.WriteGraph = fv.writeGraph
	}
	if set("site-id") {
		cfg.NLU.SiteIDs = fv.siteIDs
	}
	if set("casing") {
		cfg.NLU.Casing = fv.casing
	}
	if set("no-fuzzy") {
		cfg.NLU.Fuzzy = !fv.noFuzzy
	}
	if set("replace-numbers") {
		cfg.NLU.ReplaceNumbers = fv.replaceNumbers
	}
	if set("language") {
		cfg.NLU.Language = fv.language
	}

	if set("sentences") {
		cfg.Sentences.Files = fv.sentences
		cfg.Sentences.Watch = true
	}
	if set("watch-delay") {
		cfg.Sentences.WatchDelay = fv.watchDelay
	}

	if set("http-port") {
		cfg.HTTP.Port = fv.httpPort
	}
	if set("debug") && fv.debug {
		cfg.Logging.Level = "debug"
	}
}
