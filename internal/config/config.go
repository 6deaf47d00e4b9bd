// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP        HTTPServer  `yaml:"http"`
	Backend     Backend     `yaml:"backend"`
	Database    Database    `yaml:"database"`
	ValKey      ValKey      `yaml:"valkey"`
	Session     Session     `yaml:"session"`
	Housekeeper Housekeeper `yaml:"housekeeper"`
	Console     Console     `yaml:"console"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// Backend is the upstream REST API every gateway route forwards to.
type Backend struct {
	URL     string        `yaml:"url" default:"http://localhost:8081/api/v1"`
	Timeout time.Duration `yaml:"timeout" default:"15s"`
}

type Database struct {
	Name     string              `yaml:"name" default:"admin_gateway"`
	Port     string              `yaml:"port" default:"5432"`
	SSLMode  string              `yaml:"sslMode" default:"disable"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix"`
}

type Session struct {
	AccessTokenCookie  CookieTemplate `yaml:"accessTokenCookie"`
	RefreshTokenCookie CookieTemplate `yaml:"refreshTokenCookie"`
	SessionIDCookie    CookieTemplate `yaml:"sessionIDCookie"`

	// ProfileCacheTTL bounds how long a profile read from valkey is served
	// from the in-process cache. Zero disables the cache; with several
	// replicas it is also how long a profile ended elsewhere stays valid here.
	ProfileCacheTTL time.Duration `yaml:"profileCacheTTL" default:"30s"`
	// PublicPaths are the pages a signed-in user is bounced away from.
	PublicPaths []string `yaml:"publicPaths"`
}

type Housekeeper struct {
	TriggerInterval   time.Duration `yaml:"triggerInterval" default:"1h"`
	ActivityRetention time.Duration `yaml:"activityRetention" default:"2160h"`
}

// Console configures the admin console sub-command.
type Console struct {
	GatewayURL  string        `yaml:"gatewayURL" default:"http://localhost:8080"`
	SessionFile string        `yaml:"sessionFile" default:"$HOME/.admin-gateway/session.yaml"`
	Timeout     time.Duration `yaml:"timeout" default:"30s"`
}

type CookieSameSite string

const (
	CookieSameSiteNone   CookieSameSite = "None"
	CookieSameSiteLax    CookieSameSite = "Lax"
	CookieSameSiteStrict CookieSameSite = "Strict"
)

// CookieTemplate describes every attribute of a cookie except its value.
type CookieTemplate struct {
	Name     string         `yaml:"name"`
	Path     string         `yaml:"path"`
	Domain   string         `yaml:"domain"`
	MaxAge   int            `yaml:"maxAge"`
	Secure   bool           `yaml:"secure"`
	HTTPOnly bool           `yaml:"httpOnly"`
	SameSite CookieSameSite `yaml:"sameSite"`
}

// Defaults returns the default values handed to commoncfg.LoadConfig.
// The cookie settings match what the web application historically used:
// a one hour access token and a seven day refresh token.
func Defaults() map[string]any {
	return map[string]any{
		"session.accessTokenCookie.name":      "accessToken",
		"session.accessTokenCookie.path":      "/",
		"session.accessTokenCookie.maxAge":    60 * 60,
		"session.accessTokenCookie.secure":    true,
		"session.accessTokenCookie.httpOnly":  true,
		"session.accessTokenCookie.sameSite":  string(CookieSameSiteLax),
		"session.refreshTokenCookie.name":     "refreshToken",
		"session.refreshTokenCookie.path":     "/",
		"session.refreshTokenCookie.maxAge":   60 * 60 * 24 * 7,
		"session.refreshTokenCookie.secure":   true,
		"session.refreshTokenCookie.httpOnly": true,
		"session.refreshTokenCookie.sameSite": string(CookieSameSiteLax),
		"session.sessionIDCookie.name":        "sessionID",
		"session.sessionIDCookie.path":        "/",
		"session.sessionIDCookie.maxAge":      60 * 60 * 24 * 7,
		"session.sessionIDCookie.secure":      true,
		"session.sessionIDCookie.httpOnly":    true,
		"session.sessionIDCookie.sameSite":    string(CookieSameSiteLax),
		"session.profileCacheTTL":             "30s",
		"session.publicPaths": []string{
			"/sign-in",
			"/sign-up",
			"/api/auth/google",
			"/api/auth/google/callback",
			"/landing",
		},
		"valkey.prefix": "admin-gateway",
	}
}
