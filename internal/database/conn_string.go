package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/depthbook/internal/config"
)

// ApplicationName is reported to the server as application_name.
const ApplicationName = "depthbook"

// BuildConnString builds a postgres:// URL from config. Credentials and the
// database name are escaped, and sslmode falls back to prefer.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
