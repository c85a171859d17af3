package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cimillas/checkin-pay/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errInspectFilter = errors.New("inspect: pass --session or --order")

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the persisted state of a session or an order as YAML",
	Long: `inspect dumps what the store holds for one browser session, or for one
order across every session: its order context, confirmation record, redirect
return parameters and hold timers.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().String("session", "", "session ID (the checkin_session cookie)")
	inspectCmd.Flags().String("order", "", "order ID")
}

func runInspect(cmd *cobra.Command, args []string) error {
	sessionID, _ := cmd.Flags().GetString("session")
	orderID, _ := cmd.Flags().GetString("order")
	if sessionID == "" && orderID == "" {
		return errInspectFilter
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg, log.Default())
	if err != nil {
		return err
	}
	defer store.close()

	return inspect(cmd.Context(), store, cmd.OutOrStdout(), sessionID, orderID)
}

// inspect writes matching entries grouped by session, then by key.
func inspect(ctx context.Context, store storage.Store, w io.Writer, sessionID, orderID string) error {
	prefix := storage.SessionPrefix()
	if sessionID != "" {
		prefix += sessionID + "/"
	}

	out := map[string]map[string]any{}
	err := store.Scan(ctx, prefix, func(key string, value []byte) error {
		sid, rest, ok := storage.SplitSessionKey(key)
		if !ok {
			return nil
		}
		if orderID != "" && !matchesOrder(rest, value, orderID) {
			return nil
		}

		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			decoded = string(value)
		}
		if out[sid] == nil {
			out[sid] = map[string]any{}
		}
		out[sid][rest] = decoded
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan store: %w", err)
	}

	if len(out) == 0 {
		fmt.Fprintln(w, "# nothing stored")
		return nil
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// matchesOrder reports whether a session-relative key belongs to the order.
// Hold timers are keyed by subject, so their orderId field is checked instead.
func matchesOrder(rest string, value []byte, orderID string) bool {
	if strings.HasSuffix(rest, "/"+orderID) && !strings.HasPrefix(rest, "hold/") {
		return true
	}
	if !strings.HasPrefix(rest, "hold/") {
		return false
	}
	var t struct {
		OrderID string `json:"orderId"`
	}
	return json.Unmarshal(value, &t) == nil && t.OrderID == orderID
}
