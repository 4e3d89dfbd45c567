package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

/* ---------- raw structs ---------- */

type DBConfig struct {
	Host, User, Password, DBName, SSLMode string
	Port                                  int
}

type Config struct {
	WebHost, SMTPHost, Domain, CertFile, KeyFile string
	WebPort, SMTPPort                            int

	DB DBConfig

	// Outbound dispatch. Transport selects the gateway backend:
	// "resend" (default) posts to the Resend HTTP API, "smtp" submits
	// to RelayHost:RelayPort. An unconfigured backend reports every
	// send as skipped instead of attempting delivery.
	OutboundTransport string
	ResendAPIKey      string
	ResendEndpoint    string
	RelayHost         string
	RelayPort         int

	// Origin echoed in Access-Control-Allow-Origin on every response.
	AllowOrigin string
}

/* ---------- loader ---------- */

func Load() (Config, error) {

	viper.SetDefault("smtp.host", "0.0.0.0")
	viper.SetDefault("smtp.port", 25)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("domain", "example.com")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("outbound.transport", "resend")
	viper.SetDefault("outbound.relay_port", 25)
	viper.SetDefault("cors.allow_origin", "*")

	_ = viper.ReadInConfig() // ignore missing config file

	c := Config{
		SMTPHost: viper.GetString("smtp.host"),
		SMTPPort: viper.GetInt("smtp.port"),
		WebHost:  viper.GetString("web.host"),
		WebPort:  viper.GetInt("web.port"),
		Domain:   viper.GetString("domain"),
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetInt("db.port"),
			User:     viper.GetString("db.user"),
			Password: viper.GetString("db.password"),
			DBName:   viper.GetString("db.name"),
			SSLMode:  viper.GetString("db.sslmode"),
		},
		OutboundTransport: viper.GetString("outbound.transport"),
		ResendAPIKey:      viper.GetString("outbound.resend_api_key"),
		ResendEndpoint:    viper.GetString("outbound.resend_endpoint"),
		RelayHost:         viper.GetString("outbound.relay_host"),
		RelayPort:         viper.GetInt("outbound.relay_port"),
		AllowOrigin:       viper.GetString("cors.allow_origin"),
		CertFile:          viper.GetString("tls.cert_file"),
		KeyFile:           viper.GetString("tls.key_file"),
	}

	// ---- OVERRIDE WITH ENV VARS (STRICT) ----
	if v := os.Getenv("OPENPOSTA_DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("OPENPOSTA_DB_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.DB.Port)
	}
	if v := os.Getenv("OPENPOSTA_DB_USER"); v != "" {
		c.DB.User = v
	}
	if v := os.Getenv("OPENPOSTA_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("OPENPOSTA_DB_NAME"); v != "" {
		c.DB.DBName = v
	}
	if v := os.Getenv("OPENPOSTA_DOMAIN"); v != "" {
		c.Domain = v
	}
	if v := os.Getenv("OPENPOSTA_RESEND_API_KEY"); v != "" {
		c.ResendAPIKey = v
	}

	return c, nil
}
