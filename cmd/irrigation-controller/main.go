// Command irrigation-controller runs watering programs on GPIO-driven valves
// and reports over MQTT and HTTP.
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/irrigation-controller/internal/config"
	"github.com/sweeney/irrigation-controller/internal/logic"
)

const defaultConfigPath = "/etc/irrigation-controller/config.yaml"

var version = "dev"

func main() {
	if err := BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

// BuildCLI assembles the command tree.
func BuildCLI() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "irrigation-controller",
		Short:        "Irrigation controller daemon",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file path")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Print the configured stations and upcoming program starts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), cfg, time.Now())
		},
	})

	return root
}

func printState(w io.Writer, cfg *config.Config, now time.Time) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	store, err := cfg.ProgramStore()
	if err != nil {
		return err
	}

	mode := "parallel"
	if opts.Sequential {
		mode = "sequential"
	}
	fmt.Fprintf(w, "boards: %d  mode: %s  water: %d%%  master: %s\n\n",
		opts.Boards, mode, opts.WaterPercentage, stationLabel(opts, opts.MasterStation))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATION\tNAME\tMASTER\tRAIN\tRELAY\tDISABLED")
	for _, st := range opts.Stations {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", st.ID, st.Name,
			yesNo(st.TriggersMaster), yesNo(!st.IgnoresRain), yesNo(st.ActivatesRelay), yesNo(st.Disabled))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROGRAM\tNAME\tENABLED\tNEXT START")
	for _, p := range programInfo(store, now) {
		next := "never"
		if !p.NextStart.IsZero() {
			next = p.NextStart.Format("Mon 02 Jan 15:04 MST")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, yesNo(p.Enabled), next)
	}
	return tw.Flush()
}

func stationLabel(opts logic.Options, sid logic.StationID) string {
	if sid == 0 {
		return "none"
	}
	if name := opts.Station(sid).Name; name != "" {
		return fmt.Sprintf("%d (%s)", sid, name)
	}
	return fmt.Sprint(sid)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
