// Command example is a small runnable demonstration of the mcast runtime: it
// launches a MethodCall "echo" service, calls it from a UserThread service,
// and shuts down cleanly on SIGINT.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kosmolabs/mcast"
)

func main() {
	rt, err := mcast.Start(
		mcast.WithWorkerCount(4),
		mcast.WithLogger(mcast.NewLogger(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start runtime:", err)
		os.Exit(1)
	}

	echo, err := rt.LaunchMethodService("echo", mcast.StackSmall, func(_ *mcast.Context, method string, args any) (any, mcast.Status) {
		switch method {
		case "upper":
			s, _ := args.(string)
			result := make([]byte, len(s))
			for i := 0; i < len(s); i++ {
				c := s[i]
				if c >= 'a' && c <= 'z' {
					c -= 'a' - 'A'
				}
				result[i] = c
			}
			return string(result), mcast.StatusOK
		default:
			return nil, mcast.NewStatus(mcast.InvalidArgument, "unknown method: "+method)
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "launch echo service:", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	_, err = rt.LaunchService("caller", mcast.StackSmall, func(ctx *mcast.Context) mcast.Status {
		defer close(done)
		for _, word := range []string{"hello", "from", "mcast"} {
			result, status := rt.CallMethod(ctx, echo, "upper", word)
			if !status.Ok() {
				fmt.Fprintln(os.Stderr, "call failed:", status)
				continue
			}
			fmt.Printf("%s -> %s\n", word, result)
		}
		return mcast.StatusOK
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "launch caller service:", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
	case <-sigCh:
	case <-time.After(5 * time.Second):
	}

	rt.Stop()
	rt.WaitStop()
}
