// Package config loads the controller's client.cfg file, producing a
// validated identity.Identity + identity.Elements pair. CLI flags and
// environment overrides are handled in cmd/controller.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/erkko68/xarxes/internal/identity"
	"github.com/erkko68/xarxes/internal/logging"
)

// Config is the fully parsed and validated contents of client.cfg.
type Config struct {
	Identity identity.Identity
	Elements *identity.Elements
}

// Load reads path (key=value per line, whitespace stripped) and builds a
// Config. Unknown keys are ignored. Hyphenated keys (Local-TCP, Srv-UDP)
// are stored with underscores internally.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	raw := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ReplaceAll(strings.TrimSpace(parts[0]), " ", "")
		val := strings.ReplaceAll(strings.TrimSpace(parts[1]), " ", "")
		key = strings.ReplaceAll(key, "-", "_")
		raw[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}

	if name, ok := raw["Name"]; ok {
		if len(name) != 8 {
			logging.L().Warn("config_invalid_name", "name", name, "reason", "must be exactly 8 characters")
		}
		cfg.Identity.Name = name
	}
	if situation, ok := raw["Situation"]; ok {
		if !identity.ValidateSituation(situation) {
			logging.L().Warn("config_invalid_situation", "situation", situation)
		}
		cfg.Identity.Situation = situation
	}
	if mac, ok := raw["MAC"]; ok {
		if !identity.ValidateMAC(mac) {
			return nil, fmt.Errorf("config: invalid MAC address %q", mac)
		}
		cfg.Identity.MAC = mac
	}
	if v, ok := raw["Local_TCP"]; ok {
		port, err := parsePort(v)
		if err != nil {
			return nil, fmt.Errorf("config: Local-TCP: %w", err)
		}
		cfg.Identity.LocalTCP = port
	}
	if v, ok := raw["Srv_UDP"]; ok {
		port, err := parsePort(v)
		if err != nil {
			return nil, fmt.Errorf("config: Srv-UDP: %w", err)
		}
		cfg.Identity.SrvUDP = port
	}
	if v, ok := raw["Server"]; ok {
		cfg.Identity.Server = v
	}
	deviceIDs := []string{}
	if v, ok := raw["Elements"]; ok && v != "" {
		deviceIDs = strings.Split(v, ";")
		if len(deviceIDs) > identity.MaxElements {
			logging.L().Warn("config_too_many_elements", "count", len(deviceIDs), "kept", identity.MaxElements)
		}
		for _, id := range deviceIDs {
			if !identity.ValidateDeviceID(id) {
				logging.L().Warn("config_invalid_device_id", "device", id)
			}
		}
	}
	cfg.Elements = identity.NewElements(deviceIDs)

	return cfg, nil
}

func parsePort(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", v)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("out of range 1-65535: %d", n)
	}
	return n, nil
}
