package config

import (
	"net"
	"os"
	"strconv"
)

// Default configuration values.
const (
	DefaultAlias         = "localsend-go"
	DefaultDeviceType    = "desktop"
	DefaultPort          = 53317
	DefaultOutputDir     = "./test_files/"
	DefaultMulticastAddr = "224.0.0.167"
)

// Config holds application configuration.
type Config struct {
	Alias         string
	DeviceType    string
	DeviceModel   string
	Port          int
	OutputDir     string
	MulticastAddr net.IP
	AutoAccept    bool
}

// Options carries CLI flag overrides into Load.
type Options struct {
	Alias       string
	DeviceType  string
	DeviceModel string
	Port        int
	OutputDir   string
	AutoAccept  bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	alias := opts.Alias
	if alias == "" {
		alias = os.Getenv("LOCALSEND_ALIAS")
	}
	if alias == "" {
		alias = DefaultAlias
	}

	deviceType := opts.DeviceType
	if deviceType == "" {
		deviceType = os.Getenv("LOCALSEND_DEVICE_TYPE")
	}
	if deviceType == "" {
		deviceType = DefaultDeviceType
	}

	deviceModel := opts.DeviceModel
	if deviceModel == "" {
		deviceModel = os.Getenv("LOCALSEND_DEVICE_MODEL")
	}

	port := opts.Port
	if port == 0 {
		if v := os.Getenv("LOCALSEND_PORT"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				port = parsed
			}
		}
	}
	if port == 0 {
		port = DefaultPort
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = os.Getenv("LOCALSEND_OUTPUT_DIR")
	}
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}

	autoAccept := opts.AutoAccept
	if !autoAccept {
		autoAccept = os.Getenv("LOCALSEND_AUTO_ACCEPT") == "true"
	}

	return &Config{
		Alias:         alias,
		DeviceType:    deviceType,
		DeviceModel:   deviceModel,
		Port:          port,
		OutputDir:     outputDir,
		MulticastAddr: net.ParseIP(DefaultMulticastAddr),
		AutoAccept:    autoAccept,
	}, nil
}
