package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"aidispatch/pkg/types"
)

const clientTimeout = 30 * time.Second

func defaultServer() string { return envStr("AIDISPATCH_URL", "http://localhost:8080") }

// call sends body (if any) as JSON and decodes a 2xx response into out.
func call(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var e types.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, url, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: %s", method, url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printStatus(w io.Writer, st types.StatusResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BACKEND\tACTIVE\tAVAILABLE\tINITIALIZED\tCAPABILITIES\tERROR")
	for _, b := range st.Backends {
		active := ""
		if b.Active {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\t%s\n", b.Identity, active, b.Available, b.Initialized, strings.Join(b.Capabilities, ","), b.Error)
	}
	_ = tw.Flush()
}

func newStatusCmd(_ *rootOptions) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend status of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st types.StatusResponse
			if err := call(cmd.Context(), http.MethodGet, strings.TrimRight(server, "/")+"/status", nil, &st); err != nil {
				return err
			}
			printStatus(os.Stdout, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", defaultServer(), "Server base URL (defaults AIDISPATCH_URL)")
	return cmd
}

func newSwitchCmd(root *rootOptions) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:     "switch <backend>",
		Short:   "Activate another backend on a running server",
		Example: "  aidispatch switch http-remote",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st types.StatusResponse
			url := strings.TrimRight(server, "/") + "/switch"
			if err := call(cmd.Context(), http.MethodPost, url, types.SwitchRequest{Backend: args[0]}, &st); err != nil {
				return err
			}
			root.log.Info().Str("active", st.Active).Msg("switched")
			printStatus(os.Stdout, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", defaultServer(), "Server base URL (defaults AIDISPATCH_URL)")
	return cmd
}
