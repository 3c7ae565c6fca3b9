package yarn

import (
	"provisioner/internal/cluster"
	"provisioner/internal/kerberos"
	"strings"
)

// Hadoop configuration keys used to find the ResourceManager web address.
const (
	WebappAddressKey      = "yarn.resourcemanager.webapp.address"
	WebappHTTPSAddressKey = "yarn.resourcemanager.webapp.https.address"
	HTTPPolicyKey         = "yarn.http.policy"
)

// NewProvider returns a cluster.Provider that builds one Client per call
// from the caller's Hadoop configuration, falling back to defaults for
// anything the configuration does not name.
func NewProvider(defaults Config) cluster.Provider {
	return cluster.ProviderFunc(func(user string, conf map[string]string) (cluster.ResourceManager, error) {
		cfg := defaults
		if addr := Address(conf); addr != "" {
			cfg.Address = addr
		}
		if user != "" {
			cfg.User = user
		}
		cfg.TicketCache = conf[kerberos.TicketCacheKey]
		return New(cfg)
	})
}

// Address derives the ResourceManager base URL from a Hadoop configuration.
// It returns "" when the configuration does not name one.
func Address(conf map[string]string) string {
	scheme, key := "http", WebappAddressKey
	if strings.EqualFold(conf[HTTPPolicyKey], "HTTPS_ONLY") {
		scheme, key = "https", WebappHTTPSAddressKey
	}

	addr := conf[key]
	if addr == "" {
		return ""
	}
	if strings.Contains(addr, "://") {
		return addr
	}
	return scheme + "://" + addr
}
