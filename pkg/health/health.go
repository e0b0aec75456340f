// Package health runs liveness and readiness checks and exposes them over
// HTTP and the gRPC health protocol.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

// Check is a single named probe. Check returns nil when healthy.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to the Check interface.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string { return c.name }

func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of one check execution.
type CheckResult struct {
	Name     string        `json:"name"`
	Healthy  bool          `json:"healthy"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
	Failures int           `json:"consecutive_failures,omitempty"`
}

// Status aggregates the results of one probe kind.
type Status struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

// Failed returns the names of the unhealthy checks in s
func (s *Status) Failed() []string {
	var names []string
	for _, c := range s.Checks {
		if !c.Healthy {
			names = append(names, c.Name)
		}
	}
	return names
}

type probe string

const (
	probeLiveness  probe = "liveness"
	probeReadiness probe = "readiness"
)

// Checker holds liveness and readiness checks. A failing check only turns
// unhealthy after failureThreshold consecutive failures.
type Checker struct {
	mu               sync.Mutex
	checks           map[probe][]Check
	failures         map[string]int
	timeout          time.Duration
	failureThreshold int
	logger           logger.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each individual check. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// WithFailureThreshold sets how many consecutive failures make a check unhealthy. Default is 3.
func WithFailureThreshold(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

func New(opts ...Option) *Checker {
	c := &Checker{
		checks:           make(map[probe][]Check),
		failures:         make(map[string]int),
		timeout:          5 * time.Second,
		failureThreshold: 3,
		logger:           logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLivenessCheck registers a check that decides whether the process should be restarted.
func (c *Checker) AddLivenessCheck(check Check) {
	c.add(probeLiveness, check)
}

// AddReadinessCheck registers a check that decides whether the relay can take traffic.
func (c *Checker) AddReadinessCheck(check Check) {
	c.add(probeReadiness, check)
}

func (c *Checker) add(p probe, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[p] = append(c.checks[p], check)
}

// ReadinessNames lists the registered readiness checks in sorted order.
func (c *Checker) ReadinessNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.checks[probeReadiness]))
	for _, chk := range c.checks[probeReadiness] {
		names = append(names, chk.Name())
	}
	sort.Strings(names)
	return names
}

func (c *Checker) CheckLiveness(ctx context.Context) (*Status, error) {
	return c.run(ctx, probeLiveness)
}

func (c *Checker) CheckReadiness(ctx context.Context) (*Status, error) {
	return c.run(ctx, probeReadiness)
}

// run executes every check of the probe concurrently
func (c *Checker) run(ctx context.Context, p probe) (*Status, error) {
	c.mu.Lock()
	checks := append([]Check(nil), c.checks[p]...)
	c.mu.Unlock()

	status := &Status{Healthy: true, Checks: make([]CheckResult, len(checks))}
	if len(checks) == 0 {
		return status, nil
	}

	var wg sync.WaitGroup
	for i, chk := range checks {
		wg.Add(1)
		go func(i int, chk Check) {
			defer wg.Done()
			status.Checks[i] = c.execute(ctx, p, chk)
		}(i, chk)
	}
	wg.Wait()

	failed := status.Failed()
	if len(failed) > 0 {
		status.Healthy = false
		return status, fmt.Errorf("%s checks failed: %v", p, failed)
	}
	return status, nil
}

func (c *Checker) execute(parent context.Context, p probe, chk Check) CheckResult {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := chk.Check(ctx)
	res := CheckResult{Name: chk.Name(), Latency: time.Since(start), Healthy: true}

	key := string(p) + "/" + chk.Name()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures[key] = 0
		return res
	}

	c.failures[key]++
	res.Failures = c.failures[key]
	fields := []logger.LogField{
		logger.StringField("check", chk.Name()),
		logger.StringField("probe", string(p)),
		logger.ErrorField(err),
		logger.IntField("failures", res.Failures),
	}

	if res.Failures < c.failureThreshold {
		c.logger.Debug("Health check failed below threshold", fields...)
		return res
	}

	res.Healthy = false
	res.Error = err.Error()
	c.logger.Warn("Health check failed", fields...)
	return res
}
