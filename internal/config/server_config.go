package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	// ModuleName is shown in the CLI help and the version string.
	ModuleName = "go-ledger-wallet"

	envPrefix = "WALLET"
)

// Set at build time via -ldflags "-X ..."
var (
	BuildCommit = "dev"
	BuildDate   = "unknown"
)

// GetFormattedBuildArgs returns the version string printed by `app --version`.
func GetFormattedBuildArgs() string {
	return fmt.Sprintf("%v @ %v", BuildCommit, BuildDate)
}

type LoggerServer struct {
	Level              zerolog.Level `json:"level"`
	PrettyPrintConsole bool          `json:"prettyPrintConsole"`
	Caller             bool          `json:"caller"`
	// File enables an additional rotating log file when non-empty.
	File           string `json:"file"`
	FileMaxSizeMB  int    `json:"fileMaxSizeMB"`
	FileMaxBackups int    `json:"fileMaxBackups"`
}

// Wallet holds the defaults of the hardware wallet flow.
type Wallet struct {
	// DefaultChainID is used when the caller does not pass a chain id.
	DefaultChainID int64 `json:"defaultChainId"`
	// DeviceTimeout bounds a single exchange with the device, including the
	// time the user needs to confirm on screen. Zero disables the bound.
	DeviceTimeout time.Duration `json:"deviceTimeout"`
}

// Providers holds the defaults of the RPC provider constructors.
type Providers struct {
	DefaultNetwork string `json:"defaultNetwork"`
	LocalURL       string `json:"localUrl"`
	LocalPort      int    `json:"localPort"`
	// InjectedEndpoint is the endpoint exposed by an injected wallet
	// (IPC socket path, ws:// or http:// URL). Empty means none is injected.
	InjectedEndpoint string `json:"injectedEndpoint"`

	EtherscanAPIKey string `json:"-"`
	InfuraAPIKey    string `json:"-"`
}

type Server struct {
	Logger    LoggerServer `json:"logger"`
	Wallet    Wallet       `json:"wallet"`
	Providers Providers    `json:"providers"`
}

// Default returns the configuration without any environment overrides.
func Default() Server {
	return Server{
		Logger: LoggerServer{
			Level:              zerolog.InfoLevel,
			PrettyPrintConsole: true,
			FileMaxSizeMB:      50,
			FileMaxBackups:     3,
		},
		Wallet: Wallet{
			DefaultChainID: 1,
			DeviceTimeout:  2 * time.Minute,
		},
		Providers: Providers{
			DefaultNetwork: "homestead",
			LocalURL:       "http://localhost",
			LocalPort:      8545,
		},
	}
}

// DefaultServiceConfigFromEnv returns the server config as parsed from a
// local .env file (if present) and the WALLET_* environment variables,
// falling back to Default for everything unset.
func DefaultServiceConfigFromEnv() Server {
	if err := gotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
	}

	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("logger.level", def.Logger.Level.String())
	v.SetDefault("logger.pretty_print_console", def.Logger.PrettyPrintConsole)
	v.SetDefault("logger.caller", def.Logger.Caller)
	v.SetDefault("logger.file", def.Logger.File)
	v.SetDefault("logger.file_max_size_mb", def.Logger.FileMaxSizeMB)
	v.SetDefault("logger.file_max_backups", def.Logger.FileMaxBackups)
	v.SetDefault("chain_id", def.Wallet.DefaultChainID)
	v.SetDefault("device_timeout", def.Wallet.DeviceTimeout)
	v.SetDefault("provider.network", def.Providers.DefaultNetwork)
	v.SetDefault("local.url", def.Providers.LocalURL)
	v.SetDefault("local.port", def.Providers.LocalPort)
	v.SetDefault("injected.provider", def.Providers.InjectedEndpoint)
	v.SetDefault("etherscan.api_key", "")
	v.SetDefault("infura.api_key", "")

	return v
}

// FromViper maps the flat viper keys onto the Server struct.
func FromViper(v *viper.Viper) Server {
	level, err := zerolog.ParseLevel(v.GetString("logger.level"))
	if err != nil {
		level = Default().Logger.Level
	}

	return Server{
		Logger: LoggerServer{
			Level:              level,
			PrettyPrintConsole: v.GetBool("logger.pretty_print_console"),
			Caller:             v.GetBool("logger.caller"),
			File:               v.GetString("logger.file"),
			FileMaxSizeMB:      v.GetInt("logger.file_max_size_mb"),
			FileMaxBackups:     v.GetInt("logger.file_max_backups"),
		},
		Wallet: Wallet{
			DefaultChainID: v.GetInt64("chain_id"),
			DeviceTimeout:  v.GetDuration("device_timeout"),
		},
		Providers: Providers{
			DefaultNetwork:   v.GetString("provider.network"),
			LocalURL:         v.GetString("local.url"),
			LocalPort:        v.GetInt("local.port"),
			InjectedEndpoint: v.GetString("injected.provider"),
			EtherscanAPIKey:  v.GetString("etherscan.api_key"),
			InfuraAPIKey:     v.GetString("infura.api_key"),
		},
	}
}
