package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mintrunner/internal/model"
)

var (
	// ErrMissingConfig is returned by Validate for absent required settings.
	ErrMissingConfig = errors.New("missing configuration")
	// ErrInvalidConfig is returned by Load for values that do not parse.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Mainnet deployment addresses.
const (
	DefaultGenesisKeyAddress     = "0x8fb5a7894ab461a59acdfab8918335768e411414"
	DefaultTreasuryAddress       = "0x1d438f0ca004e3ec155df9e7e0457215483de8d5"
	DefaultInsiderAddress        = "0xfc99e6b4447a17ea0c6162854fcb572ddc8fbb37"
	DefaultProfileAuctionAddress = "0x30f649D418AF7358f9c8CB036219fC7f1B646309"
)

const (
	genesisKeyABIFile     = "GenesisKey.json"
	profileAuctionABIFile = "ProfileAuction.json"
	containerABIDir       = "/app"
)

// deployedEnv maps config keys to the environment variable names used by
// existing deployments.
var deployedEnv = map[string]string{
	"rpc":                     "ETH_NODE_URL",
	"env":                     "ENV",
	"profile-per-gk":          "PROFILE_PER_GK",
	"table":                   "MINT_TABLE_NAME",
	"db-name":                 "DB_NAME",
	"db-user":                 "DB_USER",
	"db-pass":                 "DB_PASS",
	"db-host":                 "DB_HOST",
	"db-port":                 "DB_PORT",
	"pg-dsn":                  "PG_DSN",
	"etherscan-api-key":       "ETHERSCAN_API_KEY",
	"include-external-supply": "INCLUDE_EXTERNAL_SUPPLY",
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL      string
	Environment string

	ProfilePerGK    uint64
	HasProfilePerGK bool

	Table  string
	PGDSN  string
	DBName string
	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DryRun bool
	Out    string

	GenesisKeyABI         string
	ProfileAuctionABI     string
	GenesisKeyAddress     string
	TreasuryAddress       string
	InsiderAddress        string
	ProfileAuctionAddress string

	IncludeExternalSupply bool
	RequireExternalSupply bool
	ProfileNFTAddress     string
	EtherscanURL          string
	EtherscanAPIKey       string
	HTTPTimeout           time.Duration

	MaxRetries    int
	RetryBackoff  time.Duration
	ProgressEvery uint64

	PushgatewayURL string
	LogLevel       string
}

// Load merges config file, .env, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("MINTRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, env := range deployedEnv {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetDefault("genesis-key-address", DefaultGenesisKeyAddress)
	v.SetDefault("treasury-address", DefaultTreasuryAddress)
	v.SetDefault("insider-address", DefaultInsiderAddress)
	v.SetDefault("profile-auction-address", DefaultProfileAuctionAddress)
	v.SetDefault("db-port", "5432")
	v.SetDefault("etherscan-url", "https://api.etherscan.io/api")
	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("progress-every", uint64(1000))
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	num := numbers{v: v}
	env := v.GetString("env")
	cfg := Config{
		RPCURL:                v.GetString("rpc"),
		Environment:           env,
		ProfilePerGK:          num.getUint64("profile-per-gk"),
		HasProfilePerGK:       v.IsSet("profile-per-gk"),
		Table:                 v.GetString("table"),
		PGDSN:                 v.GetString("pg-dsn"),
		DBName:                v.GetString("db-name"),
		DBUser:                v.GetString("db-user"),
		DBPass:                v.GetString("db-pass"),
		DBHost:                v.GetString("db-host"),
		DBPort:                v.GetString("db-port"),
		DryRun:                v.GetBool("dry-run"),
		Out:                   v.GetString("out"),
		GenesisKeyABI:         resolveABIPath(v.GetString("genesis-key-abi"), env, genesisKeyABIFile),
		ProfileAuctionABI:     resolveABIPath(v.GetString("profile-auction-abi"), env, profileAuctionABIFile),
		GenesisKeyAddress:     v.GetString("genesis-key-address"),
		TreasuryAddress:       v.GetString("treasury-address"),
		InsiderAddress:        v.GetString("insider-address"),
		ProfileAuctionAddress: v.GetString("profile-auction-address"),
		IncludeExternalSupply: v.GetBool("include-external-supply"),
		RequireExternalSupply: v.GetBool("require-external-supply"),
		ProfileNFTAddress:     v.GetString("profile-nft-address"),
		EtherscanURL:          v.GetString("etherscan-url"),
		EtherscanAPIKey:       v.GetString("etherscan-api-key"),
		HTTPTimeout:           num.getDuration("http-timeout"),
		MaxRetries:            num.getInt("max-retries"),
		RetryBackoff:          num.getDuration("retry-backoff"),
		ProgressEvery:         num.getUint64("progress-every"),
		PushgatewayURL:        v.GetString("pushgateway-url"),
		LogLevel:              v.GetString("log-level"),
	}
	if len(num.invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(num.invalid, ", "))
	}

	return cfg, nil
}

// numbers reads numeric settings strictly. viper's typed getters turn
// malformed values into zero.
type numbers struct {
	v       *viper.Viper
	invalid []string
}

func (n *numbers) fail(key string, raw interface{}) {
	n.invalid = append(n.invalid, fmt.Sprintf("%s=%q", key, cast.ToString(raw)))
}

func (n *numbers) getUint64(key string) uint64 {
	raw := n.v.Get(key)
	out, err := cast.ToUint64E(raw)
	if err != nil {
		n.fail(key, raw)
	}
	return out
}

func (n *numbers) getInt(key string) int {
	raw := n.v.Get(key)
	out, err := cast.ToIntE(raw)
	if err != nil || out < 0 {
		n.fail(key, raw)
	}
	return out
}

func (n *numbers) getDuration(key string) time.Duration {
	raw := n.v.Get(key)
	if raw == nil {
		return 0
	}
	out, err := cast.ToDurationE(raw)
	if err != nil || out < 0 {
		n.fail(key, raw)
	}
	return out
}

// Validate checks the settings a full run needs before any connection is opened.
func (c Config) Validate() error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "rpc (ETH_NODE_URL)")
	}
	if !c.HasProfilePerGK {
		missing = append(missing, "profile-per-gk (PROFILE_PER_GK)")
	}
	if !c.DryRun {
		if c.Table == "" {
			missing = append(missing, "table (MINT_TABLE_NAME)")
		}
		if c.DSN() == "" {
			missing = append(missing, "pg-dsn or db-host/db-name (DB_HOST, DB_NAME)")
		}
	}
	if c.IncludeExternalSupply && c.ProfileNFTAddress == "" {
		missing = append(missing, "profile-nft-address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	if c.DryRun && c.Out == "" {
		return fmt.Errorf("%w: dry-run needs out", ErrMissingConfig)
	}
	return nil
}

// Variant returns the analytics table layout selected by the config.
func (c Config) Variant() model.Variant {
	if c.IncludeExternalSupply {
		return model.VariantExternalSupply
	}
	return model.VariantDaily
}

// DSN returns pg-dsn, or a URL assembled from the db-* parts.
func (c Config) DSN() string {
	if c.PGDSN != "" {
		return c.PGDSN
	}
	if c.DBHost == "" || c.DBName == "" {
		return ""
	}
	port := c.DBPort
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, port),
		Path:   "/" + c.DBName,
	}
	switch {
	case c.DBUser != "" && c.DBPass != "":
		u.User = url.UserPassword(c.DBUser, c.DBPass)
	case c.DBUser != "":
		u.User = url.User(c.DBUser)
	}
	return u.String()
}

// resolveABIPath returns explicit if set. Otherwise it returns the
// environment's default location when a file exists there, and "" to select
// the built-in ABI.
func resolveABIPath(explicit, env, file string) string {
	if explicit != "" {
		return explicit
	}
	path := filepath.Join(containerABIDir, file)
	if env == "local" {
		path = file
	}
	if stat, err := os.Stat(path); err == nil && !stat.IsDir() {
		return path
	}
	return ""
}

// loadDotEnv exports variables from a dotenv file without overriding the
// process environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	return nil
}
