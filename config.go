package evacalor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL      = "https://micronova.agua-iot.com"
	defaultBrandID      = "1"
	defaultCustomerCode = "635987"

	defaultHTTPTimeout     = 15 * time.Second
	defaultJobPollInterval = time.Second
	defaultJobPollAttempts = 10
)

// Config defines runtime configuration for an Agua IOT connection. Email,
// Password and ClientToken are required; everything else defaults to the
// Eva Calor production platform.
type Config struct {
	Email       string
	Password    string
	ClientToken string // caller-generated UUID, stable per installation

	// BaseURL, BrandID and CustomerCode select the vendor platform. The
	// defaults are the Eva Calor endpoints; other Micronova brands run the
	// same API under their own brand id and customer code.
	BaseURL      string
	BrandID      string
	CustomerCode string

	HTTPTimeout     time.Duration
	JobPollInterval time.Duration // delay between device job status polls
	JobPollAttempts int           // polls before a pending job is given up on
}

// NewClientToken returns a fresh client token. Generate one per
// installation and reuse it across connections.
func NewClientToken() string {
	return uuid.NewString()
}

func (c Config) withDefaults() (Config, error) {
	if strings.TrimSpace(c.Email) == "" {
		return Config{}, &ValidationError{Message: "email is required"}
	}
	if c.Password == "" {
		return Config{}, &ValidationError{Message: "password is required"}
	}
	if strings.TrimSpace(c.ClientToken) == "" {
		return Config{}, &ValidationError{Message: "client token is required"}
	}
	if _, err := uuid.Parse(c.ClientToken); err != nil {
		return Config{}, &ValidationError{Message: fmt.Sprintf("client token %q is not a valid UUID", c.ClientToken)}
	}

	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if strings.TrimSpace(c.BrandID) == "" {
		c.BrandID = defaultBrandID
	}
	if strings.TrimSpace(c.CustomerCode) == "" {
		c.CustomerCode = defaultCustomerCode
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.JobPollInterval <= 0 {
		c.JobPollInterval = defaultJobPollInterval
	}
	if c.JobPollAttempts <= 0 {
		c.JobPollAttempts = defaultJobPollAttempts
	}
	return c, nil
}
