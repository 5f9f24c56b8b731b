package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env               string        `mapstructure:"ENV"`
	Port              string        `mapstructure:"PORT"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	NotifierURL       string        `mapstructure:"NOTIFIER_URL"`
	AdminKey          string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed       string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DispatchTopN      int           `mapstructure:"DISPATCH_TOP_N"`
	AmbulanceRadiusKm float64       `mapstructure:"AMBULANCE_RADIUS_KM"`
	HospitalRadiusKm  float64       `mapstructure:"HOSPITAL_RADIUS_KM"`
	BroadcastTTL      time.Duration `mapstructure:"BROADCAST_TTL"`
	SweepInterval     time.Duration `mapstructure:"SWEEP_INTERVAL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("DISPATCH_TOP_N", 3)
	v.SetDefault("AMBULANCE_RADIUS_KM", 20.0)
	v.SetDefault("HOSPITAL_RADIUS_KM", 100.0)
	v.SetDefault("BROADCAST_TTL", "5m")
	v.SetDefault("SWEEP_INTERVAL", "5m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
