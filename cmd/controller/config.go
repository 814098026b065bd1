package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

type appConfig struct {
	configPath  string
	debug       bool
	logFormat   string
	metricsAddr string
	mdnsEnable  bool
	mdnsName    string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	configPath := flag.String("c", "client.cfg", "Configuration file path")
	debug := flag.Bool("d", false, "Enable debug logs")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	mdnsEnable := flag.Bool("mdns-enable", false, "Advertise the controller's TCP endpoint via mDNS once subscribed")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default xarxes-ctrl-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.configPath = *configPath
	cfg.debug = *debug
	cfg.logFormat = *logFormat
	cfg.metricsAddr = *metricsAddr
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	if c.configPath == "" {
		return errors.New("config path must not be empty")
	}
	return nil
}

// applyEnvOverrides maps XARXES_CTRL_* environment variables to config
// fields unless the corresponding flag was explicitly set (flag wins).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["c"]; !ok {
		if v, ok := get("XARXES_CTRL_CONFIG"); ok && v != "" {
			c.configPath = v
		}
	}
	if _, ok := set["d"]; !ok {
		if v, ok := get("XARXES_CTRL_DEBUG"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.debug = true
			case "0", "false", "no", "off":
				c.debug = false
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("XARXES_CTRL_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("XARXES_CTRL_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("XARXES_CTRL_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("XARXES_CTRL_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return nil
}
