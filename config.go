package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DBDir            string
	ReportInboxDir   string
	HTTPPort         string
	APIURL           string
	RelayerFrequency int // in sec
	MonitorFrequency int // in sec
	AlertWebhookURL  string
	InfoWebhookURL   string
	LogLevel         logrus.Level
	Workers          []int
}

// LoadConfig reads .env (if present) into the environment and builds the config from it
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("Error loading .env file - with err: %v", err)
	}

	cfg := &Config{
		DBDir:           getEnv("DB_DIR", "db/etnbridge"),
		ReportInboxDir:  getEnv("REPORT_INBOX_DIR", "reports"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		InfoWebhookURL:  os.Getenv("INFO_WEBHOOK_URL"),
	}
	cfg.APIURL = getEnv("API_URL", "http://localhost:"+cfg.HTTPPort)

	if cfg.RelayerFrequency, err = getEnvInt("RELAYER_FREQUENCY", 10); err != nil {
		return nil, err
	}
	if cfg.MonitorFrequency, err = getEnvInt("MONITOR_FREQUENCY", 300); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.Workers, err = parseWorkerIDs(getEnv("WORKERS", "1,2")); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%v must be a positive integer, got %q", key, value)
	}
	return n, nil
}

func parseWorkerIDs(value string) ([]int, error) {
	ids := []int{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("Invalid worker id %q in WORKERS", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func contain(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
