package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuthCallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowup",
		Name:      "auth_callbacks_total",
		Help:      "Login callbacks by outcome (success, failure).",
	}, []string{"outcome"})

	ProfilesProvisioned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowup",
		Name:      "profiles_provisioned_total",
		Help:      "Profile get-or-create results (existing, created, conflict_reread).",
	}, []string{"result"})

	ProfileCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowup",
		Name:      "profile_cache_lookups_total",
		Help:      "Profile read cache lookups (hit, miss).",
	}, []string{"result"})
)

// Register registers all collectors on reg, or the default registerer when nil.
// Collectors that are already registered are ignored.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AuthCallbacks, ProfilesProvisioned, ProfileCacheLookups} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
