package config

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/chapterkit/doorman/pkg/service/verify"
)

// Verifier holds CLI flags for the membership roster API client
type Verifier struct {
	baseURL         string
	token           string
	membershipField string
	cacheTTL        time.Duration
	cacheSize       int
}

// Flags returns CLI flags for verifier configuration
func (v *Verifier) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "roster-api-url",
			Usage:       "Base URL of the membership roster API",
			Category:    "Verification",
			Required:    true,
			Sources:     cli.EnvVars("DOORMAN_ROSTER_API_URL"),
			Destination: &v.baseURL,
		},
		&cli.StringFlag{
			Name:        "roster-api-token",
			Usage:       "API token for the membership roster",
			Category:    "Verification",
			Required:    true,
			Sources:     cli.EnvVars("DOORMAN_ROSTER_API_TOKEN"),
			Destination: &v.token,
		},
		&cli.StringFlag{
			Name:        "roster-membership-field",
			Usage:       "Custom field that marks a member in good standing",
			Category:    "Verification",
			Value:       verify.DefaultMembershipField,
			Sources:     cli.EnvVars("DOORMAN_ROSTER_MEMBERSHIP_FIELD"),
			Destination: &v.membershipField,
		},
		&cli.DurationFlag{
			Name:        "verify-cache-ttl",
			Usage:       "TTL for cached verification results",
			Category:    "Verification",
			Value:       15 * time.Minute,
			Sources:     cli.EnvVars("DOORMAN_VERIFY_CACHE_TTL"),
			Destination: &v.cacheTTL,
		},
		&cli.IntFlag{
			Name:        "verify-cache-size",
			Usage:       "Maximum number of cached verification results",
			Category:    "Verification",
			Value:       500,
			Sources:     cli.EnvVars("DOORMAN_VERIFY_CACHE_SIZE"),
			Destination: &v.cacheSize,
		},
	}
}

// Configure builds the membership verification client
func (v *Verifier) Configure() (*verify.Client, error) {
	cache := verify.NewCache(
		verify.WithCacheTTL(v.cacheTTL),
		verify.WithCacheSize(v.cacheSize),
	)

	return verify.New(v.baseURL, v.token,
		verify.WithMembershipField(v.membershipField),
		verify.WithCache(cache),
	)
}
