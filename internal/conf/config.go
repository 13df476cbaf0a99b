// Package conf defines the application settings and loads them from the
// config file, environment and command line flags via viper.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains the settings for a log file.
type LogConfig struct {
	Enabled bool   // true to enable file logging
	Path    string // path to the log file
	Level   string // minimum level: debug, info, warn, error
}

// ModelSettings contains the object detection model configuration.
type ModelSettings struct {
	Path       string  // path to the detection model file (ONNX)
	LabelsPath string  // path to the class labels file, one label per line
	InputSize  int     // square input size the model expects, e.g. 640
	Confidence float64 // minimum confidence for a box to be emitted
	NMS        float64 // non-maximum suppression IoU threshold
}

// AnnotationSettings controls how detections are drawn on result images.
type AnnotationSettings struct {
	FontPath string  // path to a TTF font, empty or missing falls back to bitmap font
	FontSize float64 // label font size in points
}

// PipelineSettings contains the settings for the image processing pipeline.
type PipelineSettings struct {
	Backlog struct {
		Path string // directory holding pending camera captures
	}
	Results struct {
		Path     string // directory holding annotated result images
		MaxCount int    // retention cap, oldest results evicted beyond this
	}
	Model      ModelSettings
	Annotation AnnotationSettings
}

// CameraSettings contains the remote camera device control endpoint.
type CameraSettings struct {
	Host    string        // base URL of the camera device, e.g. http://10.10.54.41
	Timeout time.Duration // bound on control calls
}

// OutputSettings contains the database output settings. Exactly one backend
// should be enabled.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // true to enable sqlite output
		Path    string // path to sqlite database file
	}
	MySQL struct {
		Enabled  bool   // true to enable mysql output
		Username string // mysql username
		Password string // mysql password
		Database string // mysql database name
		Host     string // mysql host
		Port     string // mysql port
	}
}

// WebServerSettings contains the HTTP server settings.
type WebServerSettings struct {
	Enabled bool   // true to enable the web server
	Port    string // port to listen on
}

// Settings is the top level configuration of the application.
type Settings struct {
	Debug bool // true to enable debug logging

	Main struct {
		Name string    // node name, used to identify the installation
		Log  LogConfig // main log settings
	}

	Pipeline  PipelineSettings
	Camera    CameraSettings
	Output    OutputSettings
	WebServer WebServerSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Defaults defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the default settings to the first config path
// and points viper at the new file.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaults := &Settings{}
	if err := viper.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}

	log.Printf("Created default config file at %s", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the config file search paths in priority
// order: working directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	userConfig, err := os.UserConfigDir()
	if err != nil {
		// Fall back to working directory only, e.g. in containers without HOME
		return []string{"."}, nil
	}
	return []string{".", filepath.Join(userConfig, "pestwatch")}, nil
}

// Setting returns the current settings instance, initializing it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to the YAML configuration file. The write
// goes through a temporary file so a crash cannot leave a half-written config.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
