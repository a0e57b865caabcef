package models

// GlobalConfig holds process-wide settings read from config.yaml via Viper.
type GlobalConfig struct {
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	TasksDir   string `yaml:"tasks_dir,omitempty" mapstructure:"tasks_dir"`
	DebounceMS int    `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	LogLevel   string `yaml:"log_level" mapstructure:"log_level"`
}
