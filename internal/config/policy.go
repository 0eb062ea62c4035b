package config

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// YardPolicy holds operational knobs that may change without a restart.
type YardPolicy struct {
	DefaultTaskPriority int           `mapstructure:"defaultTaskPriority"`
	RoleCacheTTL        time.Duration `mapstructure:"roleCacheTTL"`
	ReportCacheTTL      time.Duration `mapstructure:"reportCacheTTL"`
	PendingListLimit    int           `mapstructure:"pendingListLimit"`
	SearchLimit         int           `mapstructure:"searchLimit"`
}

func DefaultYardPolicy() YardPolicy {
	return YardPolicy{
		DefaultTaskPriority: 100,
		RoleCacheTTL:        30 * time.Second,
		ReportCacheTTL:      30 * time.Second,
		PendingListLimit:    200,
		SearchLimit:         10,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds YardPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p YardPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func NewPolicyHolder(cfg Config) (*PolicyHolder, error) {
	v := viper.New()

	if cfg.PolicyPath != "" {
		v.SetConfigFile(cfg.PolicyPath)
	} else {
		v.SetConfigName("yard")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/portyard")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PORTYARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultYardPolicy()
	v.SetDefault("yard.defaultTaskPriority", defaults.DefaultTaskPriority)
	v.SetDefault("yard.roleCacheTTL", defaults.RoleCacheTTL)
	v.SetDefault("yard.reportCacheTTL", defaults.ReportCacheTTL)
	v.SetDefault("yard.pendingListLimit", defaults.PendingListLimit)
	v.SetDefault("yard.searchLimit", defaults.SearchLimit)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		watch = false
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodePolicy(v)
			if err != nil {
				log.Printf("[yard-policy] reload ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[yard-policy] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *PolicyHolder) Get() YardPolicy {
	if h == nil {
		return DefaultYardPolicy()
	}
	return h.current.Load().(YardPolicy)
}

// decodePolicy reads the yard map over the defaults. A yard map in the file
// replaces the nested viper defaults wholesale, so keys it omits must come
// from DefaultYardPolicy.
func decodePolicy(v *viper.Viper) (YardPolicy, error) {
	policy := DefaultYardPolicy()
	if err := v.UnmarshalKey("yard", &policy); err != nil {
		return policy, err
	}
	if err := validatePolicy(policy); err != nil {
		return policy, err
	}
	return policy, nil
}

func validatePolicy(p YardPolicy) error {
	if p.RoleCacheTTL < 0 || p.ReportCacheTTL < 0 {
		return errors.New("yard cache ttl cannot be negative")
	}
	if p.PendingListLimit <= 0 {
		return errors.New("yard.pendingListLimit must be positive")
	}
	if p.SearchLimit <= 0 {
		return errors.New("yard.searchLimit must be positive")
	}
	return nil
}
