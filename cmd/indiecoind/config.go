package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// defaultDataDirectory mirrors the source's default_data_directory():
// ~/.indiecoin/data.
func defaultDataDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".indiecoin", "data")
}

func defaultKeystorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".indiecoin", "wallet.key")
}

// loadConfig reads ~/.indiecoin/config.yaml if present and lets INDIECOIN_*
// environment variables and CLI flags override it, in that order.
func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(filepath.Dir(defaultDataDirectory())))
	v.SetEnvPrefix("INDIECOIN")
	v.AutomaticEnv()
	_ = v.ReadInConfig() // absent config file is not an error
	return v
}
