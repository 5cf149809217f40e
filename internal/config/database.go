package config

import (
	"os"
	"regexp"
	"strings"
	"time"
)

const (
	DatabaseSourceWordPress = "wp"
	DatabaseSourceEnv       = "env"
	DatabaseSourceNone      = "none"
)

// DatabaseConfig is the resolved connection for the audit store and the SQL ledger.
type DatabaseConfig struct {
	Enabled  bool
	Source   string
	Type     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	Charset  string

	AutoMigrate     bool
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration

	// Reason explains why a tier was skipped, for startup logging.
	Reason  string
	Missing []string
}

var wpDefinePattern = regexp.MustCompile(`define\(\s*['"](DB_[A-Z_]+)['"]\s*,\s*['"]([^'"]*)['"]\s*\)`)

var requiredDBKeys = []string{"DB_HOST", "DB_NAME", "DB_USER", "DB_PASSWORD"}

// ResolveDatabase tries the WordPress config file, then DB_* variables, and
// falls back to a disabled database.
func ResolveDatabase(wpConfigPath string, lookup func(string) string) DatabaseConfig {
	get := func(key, def string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return def
	}

	base := DatabaseConfig{
		Type:            strings.ToLower(get("DB_TYPE", "mysql")),
		Port:            get("DB_PORT", "3306"),
		Charset:         get("DB_CHARSET", "utf8mb4"),
		AutoMigrate:     strings.EqualFold(get("DB_AUTO_MIGRATE", "false"), "true"),
		MaxIdleConn:     parseInt(get("DB_MAX_IDLE_CONN", "2"), 2),
		MaxOpenConn:     parseInt(get("DB_MAX_OPEN_CONN", "10"), 10),
		ConnMaxLifetime: parseDuration(get("DB_CONN_MAX_LIFETIME", ""), 5*time.Minute),
	}

	var reasons []string
	if path := strings.TrimSpace(wpConfigPath); path != "" {
		values, err := readWordPressConfig(path)
		switch {
		case err != nil:
			reasons = append(reasons, "wp config not readable: "+err.Error())
		case len(missingKeys(values)) > 0:
			reasons = append(reasons, "wp config missing "+strings.Join(missingKeys(values), ","))
		default:
			cfg := base
			cfg.Enabled = true
			cfg.Source = DatabaseSourceWordPress
			cfg.Type = "mysql"
			cfg.Host, cfg.Port = splitHostPort(values["DB_HOST"], base.Port)
			cfg.Name = values["DB_NAME"]
			cfg.User = values["DB_USER"]
			cfg.Password = values["DB_PASSWORD"]
			if charset := values["DB_CHARSET"]; charset != "" {
				cfg.Charset = charset
			}
			return cfg
		}
	}

	env := map[string]string{}
	for _, key := range requiredDBKeys {
		env[key] = strings.TrimSpace(lookup(key))
	}
	missing := missingKeys(env)
	if base.Type == "sqlite" && env["DB_NAME"] != "" {
		missing = nil
	}
	if len(missing) == 0 {
		cfg := base
		cfg.Enabled = true
		cfg.Source = DatabaseSourceEnv
		cfg.Host, cfg.Port = splitHostPort(env["DB_HOST"], base.Port)
		cfg.Name = env["DB_NAME"]
		cfg.User = env["DB_USER"]
		cfg.Password = env["DB_PASSWORD"]
		return cfg
	}

	cfg := base
	cfg.Source = DatabaseSourceNone
	cfg.Missing = missing
	reasons = append(reasons, "no valid WP or ENV database configuration found")
	cfg.Reason = strings.Join(reasons, "; ")
	return cfg
}

func readWordPressConfig(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	for _, match := range wpDefinePattern.FindAllStringSubmatch(string(raw), -1) {
		values[match[1]] = match[2]
	}
	return values, nil
}

func missingKeys(values map[string]string) []string {
	var missing []string
	for _, key := range requiredDBKeys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// splitHostPort handles the WordPress "host:port" and "host:/path/to.sock"
// forms of DB_HOST. A socket path is returned in place of the port.
func splitHostPort(host, defPort string) (string, string) {
	host = strings.TrimSpace(host)
	if i := strings.LastIndex(host, ":"); i > 0 {
		if port := host[i+1:]; port != "" {
			return strings.Trim(host[:i], "[]"), port
		}
	}
	return host, defPort
}
