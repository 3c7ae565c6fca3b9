// Package kerberos performs ticket logins for secured cluster access.
package kerberos

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"provisioner/internal/apperrors"
	"provisioner/internal/process"
	"strings"
	"sync"
)

// Template markers replaced once at startup.
const (
	KDCMarker   = "<kdcPLACEHOLDER>"
	RealmMarker = "<realmPLACEHOLDER>"
)

// Hadoop configuration keys describing an authenticated session.
const (
	AuthenticationKey = "hadoop.security.authentication"
	TicketCacheKey    = "hadoop.security.kerberos.ticket.cache.path"
)

// loginScript reads credentials from the environment so they never appear
// in the argument vector.
const loginScript = `printf '%s\n' "$KINIT_PASSWORD" | kinit "$KINIT_USER"`

// Config holds the ticket login settings.
type Config struct {
	TemplatePath string // krb5.conf template, rewritten in place
	Realm        string
	KDC          string
	User         string
	Password     string
	CCache       string // ticket cache written by kinit; empty uses the system default
}

// Authenticator logs in to the KDC by running kinit.
type Authenticator struct {
	cfg    Config
	exec   process.Executor
	logger *slog.Logger

	// Logins share one ticket cache.
	mu sync.Mutex
}

// FillTemplate replaces every KDC and realm marker in content.
func FillTemplate(content, kdc, realm string) string {
	content = strings.ReplaceAll(content, KDCMarker, kdc)
	return strings.ReplaceAll(content, RealmMarker, realm)
}

// New fills the configuration template in place and returns an
// authenticator using it. Any read or write failure is ConfigUnreadable.
func New(cfg Config, exec process.Executor) (*Authenticator, error) {
	info, err := os.Stat(cfg.TemplatePath)
	if err != nil {
		return nil, apperrors.ConfigUnreadable("kerberos.readTemplate", err)
	}
	data, err := os.ReadFile(cfg.TemplatePath)
	if err != nil {
		return nil, apperrors.ConfigUnreadable("kerberos.readTemplate", err)
	}

	filled := FillTemplate(string(data), cfg.KDC, cfg.Realm)
	if err := os.WriteFile(cfg.TemplatePath, []byte(filled), info.Mode().Perm()); err != nil {
		return nil, apperrors.ConfigUnreadable("kerberos.writeTemplate", err)
	}

	a := &Authenticator{
		cfg:    cfg,
		exec:   exec,
		logger: slog.With("component", "kerberos", "user", cfg.User, "realm", cfg.Realm),
	}
	a.logger.Info("Kerberos configuration prepared", "path", cfg.TemplatePath)
	return a, nil
}

// Login obtains a fresh ticket. A non-zero kinit exit is LoginFailed.
func (a *Authenticator) Login() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	env := map[string]string{
		"KINIT_USER":     a.cfg.User,
		"KINIT_PASSWORD": a.cfg.Password,
		"KRB5_CONFIG":    a.cfg.TemplatePath,
	}
	if a.cfg.CCache != "" {
		env["KRB5CCNAME"] = a.cfg.CCache
	}

	code, err := a.exec.Run([]string{"/bin/sh", "-c", loginScript}, env)
	if err != nil {
		return apperrors.LoginFailed("kinit", err)
	}
	if code != 0 {
		return apperrors.LoginFailed("kinit", fmt.Errorf("kinit exited with code %d", code))
	}

	a.logger.Debug("Kerberos login succeeded")
	return nil
}

// Authenticate logs in and returns a copy of conf describing the
// authenticated session. conf itself is not modified.
func (a *Authenticator) Authenticate(conf map[string]string) (map[string]string, error) {
	if err := a.Login(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(conf)+2)
	maps.Copy(out, conf)
	out[AuthenticationKey] = "kerberos"
	if a.cfg.CCache != "" {
		out[TicketCacheKey] = a.cfg.CCache
	}
	return out, nil
}

// User returns the principal used for logins.
func (a *Authenticator) User() string {
	return a.cfg.User
}

// ConfigPath returns the filled krb5.conf path.
func (a *Authenticator) ConfigPath() string {
	return a.cfg.TemplatePath
}

// TicketCache returns the credential cache kinit writes to, or "" for the
// kinit default.
func (a *Authenticator) TicketCache() string {
	return a.cfg.CCache
}
