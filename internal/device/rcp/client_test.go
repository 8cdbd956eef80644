package rcp_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/faderpilot/mixctl/internal/command"
	"github.com/faderpilot/mixctl/internal/device"
	"github.com/faderpilot/mixctl/internal/device/rcp"
)

// fakeConsole accepts one RCP connection and answers each received line
// according to reply, which returns the response line or "" for silence.
func fakeConsole(t *testing.T, reply func(line string) string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			if resp := reply(scanner.Text()); resp != "" {
				conn.Write([]byte(resp + "\n"))
			}
		}
	}()
	return ln.Addr().String()
}

func waitConnected(t *testing.T, c *rcp.Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !c.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("client never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_AcknowledgedDispatch(t *testing.T) {
	t.Parallel()

	addr := fakeConsole(t, func(line string) string {
		return "OK " + line
	})
	c := rcp.New(addr, rcp.WithResponseTimeout(time.Second))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	waitConnected(t, c)

	outcome := <-c.Send(ctx, command.Command{Kind: command.KindMute, Target: 6})
	if outcome != device.OutcomeAcknowledged {
		t.Errorf("outcome=%v, want acknowledged", outcome)
	}
}

func TestClient_RejectedDispatch(t *testing.T) {
	t.Parallel()

	addr := fakeConsole(t, func(line string) string {
		if strings.Contains(line, "ssrecall_ex") {
			return "ERROR ssrecall_ex InvalidArgument"
		}
		return "OK " + line
	})
	c := rcp.New(addr, rcp.WithResponseTimeout(time.Second))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	waitConnected(t, c)

	outcome := <-c.Send(ctx, command.Command{Kind: command.KindSceneRecall, Target: 98})
	if outcome != device.OutcomeRejected {
		t.Errorf("outcome=%v, want rejected", outcome)
	}
}

func TestClient_TimeoutWhenConsoleSilent(t *testing.T) {
	t.Parallel()

	addr := fakeConsole(t, func(string) string { return "" })
	c := rcp.New(addr, rcp.WithResponseTimeout(50*time.Millisecond))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	waitConnected(t, c)

	outcome := <-c.Send(ctx, command.Command{Kind: command.KindMute, Target: 1})
	if outcome != device.OutcomeTimeout {
		t.Errorf("outcome=%v, want timeout", outcome)
	}
}

func TestClient_TimeoutWithoutLink(t *testing.T) {
	t.Parallel()

	// Never started, so no connection exists.
	c := rcp.New("127.0.0.1:1", rcp.WithResponseTimeout(50*time.Millisecond))
	defer c.Close()

	outcome := <-c.Send(context.Background(), command.Command{Kind: command.KindMute, Target: 1})
	if outcome != device.OutcomeTimeout {
		t.Errorf("outcome=%v, want timeout", outcome)
	}
	if c.Connected() {
		t.Error("Connected=true without a link")
	}
}
