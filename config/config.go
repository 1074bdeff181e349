package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the root configuration of the door lock service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Detection DetectionConfig `mapstructure:"detection"`
	Liveness  LivenessConfig  `mapstructure:"liveness"`
	Behavior  BehaviorConfig  `mapstructure:"behavior"`
	Door      DoorConfig      `mapstructure:"door"`
	Actuator  ActuatorConfig  `mapstructure:"actuator"`
	Alert     AlertConfig     `mapstructure:"alert"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

// ServerConfig holds the status API and shared directory settings
type ServerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	Timezone string `mapstructure:"timezone"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig holds the SQLite settings for the enrollment store and the event log
type DBConfig struct {
	File string `mapstructure:"file"`
}

// CameraConfig selects the capture device
type CameraConfig struct {
	Device      string        `mapstructure:"device"` // device index ("0") or stream URL
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	ReadBackoff time.Duration `mapstructure:"read_backoff"`
}

// DetectionConfig configures the face detection/encoding/landmark provider
type DetectionConfig struct {
	URL       string        `mapstructure:"url"`
	Model     string        `mapstructure:"model"` // "hog" or "cnn"
	Scale     float64       `mapstructure:"scale"` // downscale factor before detection
	Tolerance float64       `mapstructure:"tolerance"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LivenessConfig holds the per-frame spoof thresholds
type LivenessConfig struct {
	TextureVariance float64 `mapstructure:"texture_variance"`
	MinSaturation   float64 `mapstructure:"min_saturation"`
	GlareBrightness float64 `mapstructure:"glare_brightness"`
	GlareRatio      float64 `mapstructure:"glare_ratio"`
	FrequencySum    float64 `mapstructure:"frequency_sum"`
	FrequencyPatch  int     `mapstructure:"frequency_patch"`
	FrameDiffMin    float64 `mapstructure:"frame_diff_min"`
}

// BehaviorConfig holds the temporal tracker and session thresholds
type BehaviorConfig struct {
	EARThreshold     float64 `mapstructure:"ear_threshold"`
	MotionVariance   float64 `mapstructure:"motion_variance"`
	MotionCapacity   int     `mapstructure:"motion_capacity"`
	MotionMinSamples int     `mapstructure:"motion_min_samples"`
	RequiredFrames   int     `mapstructure:"required_frames"`
}

// DoorConfig holds the door state machine timings
type DoorConfig struct {
	AutoCloseDelay time.Duration `mapstructure:"auto_close_delay"`
	SendDelay      time.Duration `mapstructure:"send_delay"`
}

// ActuatorConfig selects how lock commands leave the process
type ActuatorConfig struct {
	Type         string `mapstructure:"type"` // "serial", "mqtt" or "none"
	SerialPort   string `mapstructure:"serial_port"`
	BaudRate     int    `mapstructure:"baud_rate"`
	CommandTopic string `mapstructure:"command_topic"`
}

// AlertConfig configures the unknown-person alerter and its email transport
type AlertConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	GracePeriod  time.Duration `mapstructure:"grace_period"`
	EvidenceDir  string        `mapstructure:"evidence_dir"`
	Provider     string        `mapstructure:"provider"` // "smtp" or "resend"
	Recipient    string        `mapstructure:"recipient"`
	Sender       string        `mapstructure:"sender"`
	Subject      string        `mapstructure:"subject"`
	SMTP         SMTPConfig    `mapstructure:"smtp"`
	ResendAPIKey string        `mapstructure:"resend_api_key"`
	QueueSize    int           `mapstructure:"queue_size"`
}

// SMTPConfig holds the SMTP transport settings
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MQTTConfig holds the broker connection used for status publishing and the MQTT actuator
type MQTTConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Broker        string              `mapstructure:"broker"`
	Port          int                 `mapstructure:"port"`
	Username      string              `mapstructure:"username"`
	Password      string              `mapstructure:"password"`
	ClientID      string              `mapstructure:"client_id"`
	TopicPrefix   string              `mapstructure:"topic_prefix"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
}

// HomeAssistantConfig holds the Home Assistant discovery settings
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// CleanupConfig holds retention settings for events and unsent evidence
type CleanupConfig struct {
	RetentionDays int           `mapstructure:"retention_days"`
	Interval      time.Duration `mapstructure:"interval"`
}

// Load reads configuration from file, environment variables and defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	v.SetEnvPrefix("DOORLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// defaults are static, a failure here is a programming error
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return &cfg
}

// setDefaults registers the default value of every key
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")
	v.SetDefault("server.timezone", "UTC")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/doorlock.log")

	v.SetDefault("db.file", "/data/doorlock.db")

	v.SetDefault("camera.device", "0")
	v.SetDefault("camera.width", 0)
	v.SetDefault("camera.height", 0)
	v.SetDefault("camera.read_backoff", 50*time.Millisecond)

	v.SetDefault("detection.url", "http://localhost:8000")
	v.SetDefault("detection.model", "hog")
	v.SetDefault("detection.scale", 0.25)
	v.SetDefault("detection.tolerance", 0.45)
	v.SetDefault("detection.timeout", 5*time.Second)

	v.SetDefault("liveness.texture_variance", 150.0)
	v.SetDefault("liveness.min_saturation", 60.0)
	v.SetDefault("liveness.glare_brightness", 250.0)
	v.SetDefault("liveness.glare_ratio", 0.05)
	v.SetDefault("liveness.frequency_sum", 10000.0)
	v.SetDefault("liveness.frequency_patch", 10)
	v.SetDefault("liveness.frame_diff_min", 5.0)

	v.SetDefault("behavior.ear_threshold", 0.25)
	v.SetDefault("behavior.motion_variance", 8.0)
	v.SetDefault("behavior.motion_capacity", 30)
	v.SetDefault("behavior.motion_min_samples", 5)
	v.SetDefault("behavior.required_frames", 20)

	v.SetDefault("door.auto_close_delay", 5*time.Second)
	v.SetDefault("door.send_delay", 10*time.Second)

	v.SetDefault("actuator.type", "serial")
	v.SetDefault("actuator.serial_port", "COM3")
	v.SetDefault("actuator.baud_rate", 9600)
	v.SetDefault("actuator.command_topic", "")

	v.SetDefault("alert.enabled", true)
	v.SetDefault("alert.grace_period", 2*time.Second)
	v.SetDefault("alert.evidence_dir", "/data/evidence")
	v.SetDefault("alert.provider", "smtp")
	v.SetDefault("alert.subject", "Alert: Unknown person detected at door")
	v.SetDefault("alert.recipient", "")
	v.SetDefault("alert.sender", "")
	v.SetDefault("alert.resend_api_key", "")
	v.SetDefault("alert.smtp.username", "")
	v.SetDefault("alert.smtp.password", "")
	v.SetDefault("alert.smtp.host", "smtp.gmail.com")
	v.SetDefault("alert.smtp.port", 587)
	v.SetDefault("alert.queue_size", 8)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "face-door-lock")
	v.SetDefault("mqtt.topic_prefix", "doorlock")
	v.SetDefault("mqtt.homeassistant.enabled", false)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")

	v.SetDefault("cleanup.retention_days", 30)
	v.SetDefault("cleanup.interval", 24*time.Hour)
}

// bindLegacyEnv keeps the variable names of existing door deployments working
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"actuator.serial_port": "ARDUINO_PORT",
		"alert.recipient":      "RECIPIENT_EMAIL",
		"alert.sender":         "SENDER_EMAIL",
		"alert.smtp.password":  "SENDER_PASS",
		"alert.resend_api_key": "RESEND_API_KEY",
	}
	for key, env := range legacy {
		if err := v.BindEnv(key, "DOORLOCK_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects values that would make the door state machines meaningless
func (c *Config) Validate() error {
	switch {
	case c.Detection.Tolerance <= 0:
		return fmt.Errorf("detection.tolerance must be positive")
	case c.Detection.Scale <= 0 || c.Detection.Scale > 1:
		return fmt.Errorf("detection.scale must be in (0, 1]")
	case c.Liveness.FrequencyPatch <= 0:
		return fmt.Errorf("liveness.frequency_patch must be positive")
	case c.Behavior.MotionCapacity <= 0:
		return fmt.Errorf("behavior.motion_capacity must be positive")
	case c.Behavior.MotionMinSamples <= 0 || c.Behavior.MotionMinSamples > c.Behavior.MotionCapacity:
		return fmt.Errorf("behavior.motion_min_samples must be in [1, motion_capacity]")
	case c.Door.AutoCloseDelay <= 0:
		return fmt.Errorf("door.auto_close_delay must be positive")
	case c.Door.SendDelay < 0:
		return fmt.Errorf("door.send_delay must not be negative")
	case c.Alert.GracePeriod < 0:
		return fmt.Errorf("alert.grace_period must not be negative")
	}
	switch c.Actuator.Type {
	case "serial", "mqtt", "none":
	default:
		return fmt.Errorf("unknown actuator.type %q", c.Actuator.Type)
	}
	switch c.Alert.Provider {
	case "smtp", "resend":
	default:
		return fmt.Errorf("unknown alert.provider %q", c.Alert.Provider)
	}
	return nil
}

// ensureDirectories creates the directories the service writes into
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if cfg.Alert.EvidenceDir != "" {
		if err := os.MkdirAll(cfg.Alert.EvidenceDir, 0755); err != nil {
			return fmt.Errorf("failed to create evidence directory: %w", err)
		}
	}

	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
