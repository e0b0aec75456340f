package checkers

import "context"

// Readier is anything that can report whether it is ready to relay messages.
type Readier interface {
	Ready() error
}

// ReadyChecker turns a Readier into a named health check.
type ReadyChecker struct {
	name string
	r    Readier
}

func NewReadyChecker(name string, r Readier) *ReadyChecker {
	return &ReadyChecker{name: name, r: r}
}

func (c *ReadyChecker) Name() string {
	return c.name
}

func (c *ReadyChecker) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.r.Ready()
}
