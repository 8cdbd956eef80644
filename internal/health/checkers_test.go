package health

import (
	"context"
	"errors"
	"testing"

	devmock "github.com/faderpilot/mixctl/internal/device/mock"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestConsoleChecker(t *testing.T) {
	tr := devmock.NewTransport()

	c := Console(tr)
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("connected transport reported unhealthy: %v", err)
	}

	tr.SetConnected(false)
	if err := c.Check(context.Background()); err == nil {
		t.Error("disconnected transport reported healthy")
	}
}

func TestDatabaseChecker(t *testing.T) {
	if err := Database(fakePinger{}).Check(context.Background()); err != nil {
		t.Errorf("healthy pool reported unhealthy: %v", err)
	}

	boom := errors.New("connection refused")
	if err := Database(fakePinger{err: boom}).Check(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Check=%v, want %v", err, boom)
	}
}
