package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/sensoralert/internal/client"
	"github.com/hamed0406/sensoralert/internal/domain"
)

type globals struct {
	api string
	key string
}

func (g *globals) client() *client.Client { return client.New(g.api, g.key) }

// NewRootCmd builds the alertctl command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "alertctl",
		Short:         "Operate a sensoralert service: list and acknowledge alerts, tune thresholds.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.api, "api", envOr("API_BASE", "http://localhost:8080"), "service base URL (env API_BASE)")
	root.PersistentFlags().StringVar(&g.key, "key", os.Getenv("API_KEY"), "API key (env API_KEY)")

	root.AddCommand(alertsCmd(g), configCmd(g), watchCmd(g))
	return root
}

// Execute runs alertctl and exits with non-zero status on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "alertctl:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func alertsCmd(g *globals) *cobra.Command {
	c := &cobra.Command{Use: "alerts", Short: "Inspect and change alerts"}

	var opts client.ListOptions
	var from, to string
	list := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if opts.From, err = parseTime(from); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if opts.To, err = parseTime(to); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			alerts, err := g.client().ListAlerts(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), alerts)
		},
	}
	list.Flags().StringVar(&opts.Type, "type", "", "Temperature or Humidity")
	list.Flags().StringVar(&opts.Status, "status", "", "open or ack")
	list.Flags().StringVar(&from, "from", "", "RFC3339 lower bound on createdAt")
	list.Flags().StringVar(&to, "to", "", "RFC3339 upper bound on createdAt")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := g.client().GetAlert(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}

	ack := &cobra.Command{
		Use:   "ack ID",
		Short: "Acknowledge an open alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := g.client().Acknowledge(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}

	status := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set an alert's status to open or ack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := g.client().SetStatus(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}

	c.AddCommand(list, get, ack, status)
	return c
}

func configCmd(g *globals) *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Read or update thresholds"}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show current thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.client().GetConfig(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}

	var tempMax, humidityMax float64
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.client().SetConfig(cmd.Context(), tempMax, humidityMax)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
	set.Flags().Float64Var(&tempMax, "temp-max", 0, "temperature threshold, > 0")
	set.Flags().Float64Var(&humidityMax, "humidity-max", 0, "humidity threshold, in (0, 100]")
	_ = set.MarkFlagRequired("temp-max")
	_ = set.MarkFlagRequired("humidity-max")

	c.AddCommand(get, set)
	return c
}

func watchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream alerts as they are created (Ctrl-C to stop)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			out := cmd.OutOrStdout()
			return g.client().Watch(ctx, func(a domain.Alert) error {
				_, err := fmt.Fprintf(out, "%s #%d %s %.2f > %.2f\n",
					a.CreatedAt.Local().Format(time.TimeOnly), a.ID, a.Type, a.Value, a.Threshold)
				return err
			})
		},
	}
}

func parseID(s string) (domain.AlertID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid alert id %q", s)
	}
	return domain.AlertID(n), nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, alerts []domain.Alert) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tVALUE\tTHRESHOLD\tSTATUS\tCREATED")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%s\t%s\n",
			a.ID, a.Type, a.Value, a.Threshold, a.Status, a.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
