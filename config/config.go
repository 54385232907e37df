package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juho05/log"
)

var values = make(map[string]any)

func Port() (port int) {
	if p, ok := values["PORT"]; ok {
		return p.(int)
	}
	defer func() {
		values["PORT"] = port
	}()
	def := 8080
	portStr := os.Getenv("PORT")
	if portStr == "" {
		return def
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Errorf("Invalid port '%s': not a number. Using default: %d", portStr, def)
		return def
	}
	return port
}

func BaseURL() (u string) {
	if b, ok := values["BASE_URL"]; ok {
		return b.(string)
	}
	defer func() {
		values["BASE_URL"] = u
	}()
	u = strings.TrimSuffix(os.Getenv("BASE_URL"), "/")
	if u == "" {
		u = "http://localhost:8080"
	}
	return u
}

// FrontendURL is the base of the web app that receives magic links.
func FrontendURL() (u string) {
	if f, ok := values["FRONTEND_URL"]; ok {
		return f.(string)
	}
	defer func() {
		values["FRONTEND_URL"] = u
	}()
	u = strings.TrimSuffix(os.Getenv("FRONTEND_URL"), "/")
	if u == "" {
		u = BaseURL()
	}
	return u
}

func DBConnection() (con string) {
	if c, ok := values["DB_CONNECTION"]; ok {
		return c.(string)
	}
	defer func() {
		values["DB_CONNECTION"] = con
	}()
	def := "database.sqlite"
	con = os.Getenv("DB_CONNECTION")
	if con == "" {
		return def
	}
	return con
}

func AutoMigrate() (b bool) {
	if m, ok := values["AUTO_MIGRATE"]; ok {
		return m.(bool)
	}
	defer func() {
		values["AUTO_MIGRATE"] = b
	}()
	str := os.Getenv("AUTO_MIGRATE")
	if str == "" {
		return true
	}
	b, err := strconv.ParseBool(str)
	if err != nil {
		log.Errorf("Invalid AUTO_MIGRATE '%s': not a boolean. Using default: true", str)
		return true
	}
	return b
}

func EmailHost() (host string) {
	if h, ok := values["EMAIL_HOST"]; ok {
		return h.(string)
	}
	defer func() {
		values["EMAIL_HOST"] = host
	}()
	return os.Getenv("EMAIL_HOST")
}

func EmailUsername() (username string) {
	if u, ok := values["EMAIL_USERNAME"]; ok {
		return u.(string)
	}
	defer func() {
		values["EMAIL_USERNAME"] = username
	}()
	return os.Getenv("EMAIL_USERNAME")
}

func EmailPassword() (password string) {
	if p, ok := values["EMAIL_PASSWORD"]; ok {
		return p.(string)
	}
	defer func() {
		values["EMAIL_PASSWORD"] = password
	}()
	return os.Getenv("EMAIL_PASSWORD")
}

func MagicLinkLifetime() time.Duration {
	return duration("MAGIC_LINK_LIFETIME", 15*time.Minute)
}

func AccessTokenLifetime() time.Duration {
	return duration("ACCESS_TOKEN_LIFETIME", 15*time.Minute)
}

func RefreshTokenLifetime() time.Duration {
	return duration("REFRESH_TOKEN_LIFETIME", 7*24*time.Hour)
}

// EventRetention bounds how far back the cleanup command keeps security events.
func EventRetention() time.Duration {
	return duration("EVENT_RETENTION", 90*24*time.Hour)
}

// MagicLinkIdentityLimit is the maximum number of link requests per identity per hour.
func MagicLinkIdentityLimit() int {
	return integer("MAGIC_LINK_IDENTITY_LIMIT", 3)
}

// MagicLinkIPLimit is the maximum number of link requests per IP per minute.
func MagicLinkIPLimit() int {
	return integer("MAGIC_LINK_IP_LIMIT", 10)
}

// HTTPRateLimit is the maximum number of requests per IP per minute enforced at the router.
func HTTPRateLimit() int {
	return integer("HTTP_RATE_LIMIT", 60)
}

// AdminEmails lists addresses that authenticate with the admin identity kind.
func AdminEmails() (emails []string) {
	if e, ok := values["ADMIN_EMAILS"]; ok {
		return e.([]string)
	}
	defer func() {
		values["ADMIN_EMAILS"] = emails
	}()
	str := os.Getenv("ADMIN_EMAILS")
	if str == "" {
		return nil
	}
	for _, e := range strings.Split(str, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails = append(emails, e)
		}
	}
	return emails
}

func duration(key string, def time.Duration) time.Duration {
	if d, ok := values[key]; ok {
		return d.(time.Duration)
	}
	str := os.Getenv(key)
	if str == "" {
		values[key] = def
		return def
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		log.Errorf("Invalid %s '%s': not a duration. Using default: %s", key, str, def)
		d = def
	}
	values[key] = d
	return d
}

func integer(key string, def int) int {
	if i, ok := values[key]; ok {
		return i.(int)
	}
	str := os.Getenv(key)
	if str == "" {
		values[key] = def
		return def
	}
	i, err := strconv.Atoi(str)
	if err != nil {
		log.Errorf("Invalid %s '%s': not a number. Using default: %d", key, str, def)
		i = def
	}
	values[key] = i
	return i
}
