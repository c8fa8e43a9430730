package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapio/internal/client"
	"github.com/alfredjeanlab/grapio/internal/events"
	"github.com/alfredjeanlab/grapio/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream flag changes",
	Long: `Print flag change events as they are published.

With --consumer, re-resolve that consumer's flag set after each burst of
changes and print only the flags whose typed value changed.`,
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		consumer, _ := cmd.Flags().GetString("consumer")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL; set --nats, GRAPIO_NATS_URL or a remote with --nats")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if consumer == "" {
			return watchEvents(ctx, natsURL)
		}
		return watchResolved(ctx, natsURL, consumer)
	},
}

func subscribe(natsURL string, reconnectCh chan<- struct{}) (*events.NATSSubscriber, <-chan events.Message, func(), error) {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
			if reconnectCh == nil {
				return
			}
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	ch, cancel, err := sub.Subscribe(events.TopicAllFlags)
	if err != nil {
		sub.Close()
		return nil, nil, nil, fmt.Errorf("subscribing to events: %w", err)
	}
	return sub, ch, cancel, nil
}

// watchEvents prints each flag event as it arrives.
func watchEvents(ctx context.Context, natsURL string) error {
	sub, ch, cancel, err := subscribe(natsURL, nil)
	if err != nil {
		return err
	}
	defer sub.Close()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := msg.Decode()
			if err != nil {
				log.Printf("skipping event: %v", err)
				continue
			}
			if jsonOutput {
				if err := printJSON(stdout, map[string]any{"topic": msg.Topic, "event": ev}); err != nil {
					return err
				}
				continue
			}
			printEvent(stdout, ev)
		}
	}
}

func printEvent(w io.Writer, ev any) {
	switch e := ev.(type) {
	case *events.FlagSet:
		fmt.Fprintf(w, "%s %s %s\n", ui.RenderMuted(e.At.Format(time.TimeOnly)), ui.RenderOK("set"), e.Flag)
	case *events.FlagUnset:
		verb := "unset"
		if !e.Removed {
			verb = "unset (no record)"
		}
		fmt.Fprintf(w, "%s %s %s.%s\n", ui.RenderMuted(e.At.Format(time.TimeOnly)), ui.RenderError(verb), e.Consumer, e.Key)
	}
}

// watchResolved re-resolves consumer after events settle, and immediately
// after a reconnect since events may have been missed.
func watchResolved(ctx context.Context, natsURL, consumer string) error {
	seen := make(map[string]client.TypedFlag)
	if err := resolveAndPrint(ctx, consumer, seen); err != nil {
		return err
	}

	reconnectCh := make(chan struct{}, 1)
	sub, ch, cancel, err := subscribe(natsURL, reconnectCh)
	if err != nil {
		return err
	}
	defer sub.Close()
	defer cancel()

	debounce := time.NewTimer(0)
	debounce.Stop()
	select {
	case <-debounce.C:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			debounce.Reset(200 * time.Millisecond)
		case <-reconnectCh:
			debounce.Reset(0)
		case <-debounce.C:
			if err := resolveAndPrint(ctx, consumer, seen); err != nil {
				return err
			}
		}
	}
}

func resolveAndPrint(ctx context.Context, consumer string, seen map[string]client.TypedFlag) error {
	flags, err := flagsClient.Resolve(ctx, consumer)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	changed, removed := diffResolved(flags, seen)
	if len(changed) > 0 {
		if jsonOutput {
			if err := printJSON(stdout, changed); err != nil {
				return err
			}
		} else if err := printTypedTable(stdout, changed); err != nil {
			return err
		}
	}
	for _, key := range removed {
		fmt.Fprintf(stdout, "%s %s\n", ui.RenderError("removed"), key)
	}
	return nil
}

// diffResolved returns the flags that are new or whose type or value changed
// since seen, and the keys that disappeared. seen is updated in place.
func diffResolved(flags []client.TypedFlag, seen map[string]client.TypedFlag) (changed []client.TypedFlag, removed []string) {
	current := make(map[string]bool, len(flags))
	for _, f := range flags {
		current[f.Key] = true
		prev, ok := seen[f.Key]
		if !ok || prev.Type != f.Type || prev.Text() != f.Text() {
			changed = append(changed, f)
		}
		seen[f.Key] = f
	}
	for key := range seen {
		if !current[key] {
			removed = append(removed, key)
			delete(seen, key)
		}
	}
	slices.Sort(removed)
	return changed, removed
}

func init() {
	watchCmd.Flags().StringP("consumer", "c", "", "re-resolve this consumer on change")
	watchCmd.Flags().String("nats", os.Getenv("GRAPIO_NATS_URL"), "NATS URL")
}
