package cli

import (
	"errors"
	"io/fs"
	"net/url"
	"os"

	"github.com/joho/godotenv"

	"github.com/jhyland87/Cryocooler-Controller/internal/config"
	"github.com/jhyland87/Cryocooler-Controller/internal/status"
	"github.com/jhyland87/Cryocooler-Controller/pkg/logger"
)

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// readNetworkInfo returns the network state, or nil when NETWORK_STATUS is
// unset. Values in envFile take precedence over the process environment;
// the file is re-read on every call so heartbeats see pi-helper updates.
func readNetworkInfo(envFile string) *status.NetworkInfo {
	get := os.Getenv
	if envFile != "" {
		if env, err := godotenv.Read(envFile); err == nil {
			get = func(key string) string {
				if v, ok := env[key]; ok {
					return v
				}
				return os.Getenv(key)
			}
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

// checkEnvFile reports an env file that exists but cannot be parsed. A
// missing file is not an error.
func checkEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := godotenv.Read(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.NewError(config.CodeEnvFile, "env", "read "+path, err)
	}
	return nil
}

// resolveWSBroker converts the ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or
// empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	if broker == "" {
		return ""
	}
	u, err := url.Parse(broker)
	if err != nil {
		logger.Log.Warn("ws-broker: cannot parse broker", "broker", broker, "error", err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
