package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/msgsight/cfgd/pkg/notify"
)

func newWatchCmd(g *globals) *cobra.Command {
	var (
		types []string
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream configuration change events",
		Example: `  cfgd watch
  cfgd watch --type Endpoint --type MessageHub --raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.adminClient()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, client.EventsURL(types), cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only stream events for these object types")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print each event as JSON")
	return cmd
}

// watch prints events from the change stream until ctx is done or the
// server closes the connection.
func watch(ctx context.Context, url string, w io.Writer, raw bool) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: %w (HTTP %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if raw {
			fmt.Fprintln(w, string(data))
			continue
		}
		var ev notify.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		fmt.Fprintln(w, formatEvent(ev))
	}
}

func formatEvent(ev notify.Event) string {
	ts := ev.Time.Local().Format(time.TimeOnly)
	switch {
	case ev.Type == "":
		return fmt.Sprintf("%s  rev %-6d %-7s", ts, ev.Revision, ev.Operation)
	case ev.Name == "":
		return fmt.Sprintf("%s  rev %-6d %-7s %s", ts, ev.Revision, ev.Operation, ev.Type)
	default:
		return fmt.Sprintf("%s  rev %-6d %-7s %s/%s", ts, ev.Revision, ev.Operation, ev.Type, ev.Name)
	}
}
