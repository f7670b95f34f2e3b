package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-posture/internal/application/scan"
	consts "github.com/khanhnv2901/seca-posture/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "SECA_POSTURE"
	configName             = ".seca-posture"
	defaultBatchWorkers    = 4
	defaultBatchRate       = 2
	defaultServeAddr       = "127.0.0.1:8080"
	defaultShutdownTimeout = 30 * time.Second
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Scan  ScanRuntimeConfig
	Batch BatchRuntimeConfig
	Serve ServeRuntimeConfig
}

// ScanRuntimeConfig holds per-probe settings used by scan, batch and serve.
type ScanRuntimeConfig struct {
	PortTimeout    time.Duration
	TLSTimeout     time.Duration
	DNSTimeout     time.Duration
	HTTPTimeout    time.Duration
	Nameservers    []string
	SystemResolver bool
	UserAgent      string
}

// BatchRuntimeConfig paces the batch command's own target list.
type BatchRuntimeConfig struct {
	Concurrency int
	RateLimit   int
	Timeout     time.Duration
}

// ServeRuntimeConfig configures the REST API.
type ServeRuntimeConfig struct {
	Addr            string
	AuthToken       string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Scan: ScanRuntimeConfig{
			PortTimeout: consts.PortProbeTimeout,
			TLSTimeout:  consts.TLSProbeTimeout,
			DNSTimeout:  consts.DNSProbeTimeout,
			HTTPTimeout: consts.HTTPProbeTimeout,
			Nameservers: []string{},
			UserAgent:   consts.BrowserUserAgent,
		},
		Batch: BatchRuntimeConfig{
			Concurrency: defaultBatchWorkers,
			RateLimit:   defaultBatchRate,
		},
		Serve: ServeRuntimeConfig{
			Addr:            defaultServeAddr,
			ShutdownTimeout: defaultShutdownTimeout,
		},
	}
}

// ProbeConfig converts the CLI settings into orchestrator settings.
func (c ScanRuntimeConfig) ProbeConfig() scan.Config {
	return scan.Config{
		PortTimeout:       c.PortTimeout,
		TLSTimeout:        c.TLSTimeout,
		DNSTimeout:        c.DNSTimeout,
		HTTPTimeout:       c.HTTPTimeout,
		Nameservers:       append([]string(nil), c.Nameservers...),
		UseSystemResolver: c.SystemResolver,
		UserAgent:         c.UserAgent,
	}
}

// registerScanFlags adds the probe flags shared by every scanning command.
func registerScanFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.DurationVar(&cliConfig.Scan.PortTimeout, "port-timeout", cliConfig.Scan.PortTimeout, "TCP connect timeout per port")
	flags.DurationVar(&cliConfig.Scan.TLSTimeout, "tls-timeout", cliConfig.Scan.TLSTimeout, "TLS handshake timeout")
	flags.DurationVar(&cliConfig.Scan.DNSTimeout, "dns-timeout", cliConfig.Scan.DNSTimeout, "DNS lookup timeout")
	flags.DurationVar(&cliConfig.Scan.HTTPTimeout, "http-timeout", cliConfig.Scan.HTTPTimeout, "HTTP request timeout")
	flags.StringSliceVar(&cliConfig.Scan.Nameservers, "nameserver", cliConfig.Scan.Nameservers, "DNS server(s) to query (host[:port]); default reads resolv.conf")
	flags.BoolVar(&cliConfig.Scan.SystemResolver, "system-resolver", false, "Use the Go system resolver instead of direct DNS queries")
	flags.StringVar(&cliConfig.Scan.UserAgent, "user-agent", cliConfig.Scan.UserAgent, "User-Agent sent by the HTTP audit")
}

// initConfig reads the config file (if any) and binds SECA_POSTURE_* env vars.
// A missing default config file is not an error; a missing explicit one is.
func initConfig(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if path == "" {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// applyConfigDefaults merges config file and env values into the runtime
// config when the user did not explicitly set the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()

	applyDurationDefault(flags, "port-timeout", "scan.port_timeout", func(v time.Duration) { cliConfig.Scan.PortTimeout = v })
	applyDurationDefault(flags, "tls-timeout", "scan.tls_timeout", func(v time.Duration) { cliConfig.Scan.TLSTimeout = v })
	applyDurationDefault(flags, "dns-timeout", "scan.dns_timeout", func(v time.Duration) { cliConfig.Scan.DNSTimeout = v })
	applyDurationDefault(flags, "http-timeout", "scan.http_timeout", func(v time.Duration) { cliConfig.Scan.HTTPTimeout = v })
	applyStringSliceDefault(flags, "nameserver", "scan.nameservers", func(v []string) { cliConfig.Scan.Nameservers = v })
	applyBoolDefault(flags, "system-resolver", "scan.system_resolver", func(v bool) { cliConfig.Scan.SystemResolver = v })
	applyStringDefault(flags, "user-agent", "scan.user_agent", func(v string) { cliConfig.Scan.UserAgent = v })

	applyIntDefault(flags, "concurrency", "batch.concurrency", func(v int) { cliConfig.Batch.Concurrency = v })
	applyIntDefault(flags, "rate", "batch.rate_limit", func(v int) { cliConfig.Batch.RateLimit = v })
	applyDurationDefault(flags, "timeout", "batch.timeout", func(v time.Duration) { cliConfig.Batch.Timeout = v })

	applyStringDefault(flags, "addr", "serve.addr", func(v string) { cliConfig.Serve.Addr = v })
	applyStringDefault(flags, "auth-token", "serve.auth_token", func(v string) { cliConfig.Serve.AuthToken = v })
	applyStringSliceDefault(flags, "cors-origins", "serve.cors_origins", func(v []string) { cliConfig.Serve.CORSOrigins = v })
	applyDurationDefault(flags, "shutdown-timeout", "serve.shutdown_timeout", func(v time.Duration) { cliConfig.Serve.ShutdownTimeout = v })
}

// flagChanged reports whether the user set name on the command line.
func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}

func applyIntDefault(flags *pflag.FlagSet, name, key string, setter func(int)) {
	if setter == nil || flagChanged(flags, name) || !viper.IsSet(key) {
		return
	}
	setter(viper.GetInt(key))
}

func applyBoolDefault(flags *pflag.FlagSet, name, key string, setter func(bool)) {
	if setter == nil || flagChanged(flags, name) || !viper.IsSet(key) {
		return
	}
	setter(viper.GetBool(key))
}

func applyStringDefault(flags *pflag.FlagSet, name, key string, setter func(string)) {
	if setter == nil || flagChanged(flags, name) || !viper.IsSet(key) {
		return
	}
	if v := viper.GetString(key); v != "" {
		setter(v)
	}
}

func applyStringSliceDefault(flags *pflag.FlagSet, name, key string, setter func([]string)) {
	if setter == nil || flagChanged(flags, name) || !viper.IsSet(key) {
		return
	}
	setter(viper.GetStringSlice(key))
}

func applyDurationDefault(flags *pflag.FlagSet, name, key string, setter func(time.Duration)) {
	if setter == nil || flagChanged(flags, name) || !viper.IsSet(key) {
		return
	}
	if v := viper.GetDuration(key); v > 0 {
		setter(v)
	}
}
