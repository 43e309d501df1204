package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	givenergy "github.com/hootrhino/gogivenergy"
	"github.com/hootrhino/gogivenergy/config"
)

var (
	flagConfig   string
	flagHost     string
	flagPort     int
	flagTimeout  time.Duration
	flagRetries  int
	flagLogLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "givenergy-cli",
		Short: "Query and control GivEnergy inverters over the local network",
		Long: `givenergy-cli talks to a GivEnergy inverter through its data adapter
using the vendor's Modbus-TCP variant, with no cloud dependency.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file path")
	pf.StringVar(&flagHost, "host", "", "data adapter host")
	pf.IntVar(&flagPort, "port", 0, "data adapter port")
	pf.DurationVar(&flagTimeout, "timeout", 0, "per-request timeout")
	pf.IntVar(&flagRetries, "retries", -1, "per-request retries")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (DEBUG, INFO, WARNING, ERROR, NONE)")

	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newEnableChargeCmd(true))
	rootCmd.AddCommand(newEnableChargeCmd(false))
	rootCmd.AddCommand(newEnableDischargeCmd(true))
	rootCmd.AddCommand(newEnableDischargeCmd(false))
	rootCmd.AddCommand(newChargeTargetCmd())
	rootCmd.AddCommand(newSetModeCmd())
	rootCmd.AddCommand(newSlotCmd("set-charge-slot", "Set a charge slot", false, false))
	rootCmd.AddCommand(newSlotCmd("reset-charge-slot", "Zero a charge slot", false, true))
	rootCmd.AddCommand(newSlotCmd("set-discharge-slot", "Set a discharge slot", true, false))
	rootCmd.AddCommand(newSlotCmd("reset-discharge-slot", "Zero a discharge slot", true, true))
	rootCmd.AddCommand(newRebootCmd())
	rootCmd.AddCommand(newCalibrateCmd())
	rootCmd.AddCommand(newSetTimeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	client  *givenergy.Client
	timeout time.Duration
	retries int
}

func connect() (*session, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagHost != "" {
		cfg.Inverter.Host = flagHost
	}
	if flagPort != 0 {
		cfg.Inverter.Port = flagPort
	}
	if flagTimeout != 0 {
		cfg.Inverter.Timeout = flagTimeout
	}
	if flagRetries >= 0 {
		cfg.Inverter.Retries = flagRetries
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if cfg.Inverter.Host == "" {
		return nil, fmt.Errorf("no host configured, pass --host or set inverter.host")
	}

	lw := givenergy.NewLevelWriter(os.Stderr, givenergy.LevelInfo)
	if err := lw.SetLevelFromString(cfg.Log.Level); err != nil {
		return nil, err
	}
	givenergy.SetLogger(lw)

	client, err := givenergy.Connect(givenergy.ClientConfig{
		Host:           cfg.Inverter.Host,
		Port:           cfg.Inverter.Port,
		ConnectTimeout: cfg.Inverter.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &session{
		client:  client,
		timeout: cfg.Inverter.Timeout,
		retries: cfg.Inverter.Retries,
	}, nil
}

func (s *session) close() {
	s.client.Close()
}

func (s *session) command(reqs []givenergy.TransparentRequest, err error) error {
	if err != nil {
		return err
	}
	return s.client.OneShotCommand(reqs, s.timeout, s.retries)
}

func printPlant(plant *givenergy.Plant) error {
	snapshot := map[string]any{
		"inverter_serial_number":     plant.InverterSerialNumber(),
		"data_adapter_serial_number": plant.DataAdapterSerialNumber(),
		"inverter":                   plant.Inverter().Dump(),
	}
	batteries := make([]map[string]any, 0)
	for _, b := range plant.Batteries() {
		batteries = append(batteries, b.Dump())
	}
	snapshot["batteries"] = batteries

	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Read the full plant state once and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.client.DetectPlant(s.timeout, s.retries); err != nil {
				return err
			}
			return printPlant(s.client.Plant())
		},
	}
}

func newWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the plant periodically and print each snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = s.client.WatchPlant(ctx, interval, s.timeout, s.retries,
				func(plant *givenergy.Plant, err error) {
					if err != nil {
						fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
						return
					}
					if err := printPlant(plant); err != nil {
						fmt.Fprintf(os.Stderr, "%v\n", err)
					}
				})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "refresh interval")
	return cmd
}

func newEnableChargeCmd(enable bool) *cobra.Command {
	use, short := "enable-charge", "Allow the battery to charge"
	if !enable {
		use, short = "disable-charge", "Prevent the battery from charging"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()
			return s.command(givenergy.SetEnableCharge(enable))
		},
	}
}

func newEnableDischargeCmd(enable bool) *cobra.Command {
	use, short := "enable-discharge", "Allow the battery to discharge"
	if !enable {
		use, short = "disable-discharge", "Prevent the battery from discharging"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()
			return s.command(givenergy.SetEnableDischarge(enable))
		},
	}
}

func newChargeTargetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-charge-target <soc>",
		Short: "Stop charging at the given state of charge (4-100%)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			soc, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid SOC %q: %w", args[0], err)
			}
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()
			return s.command(givenergy.SetChargeTarget(soc))
		},
	}
}

func newSetModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-mode <dynamic|storage>",
		Short: "Switch between dynamic (eco) and storage mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()
			switch args[0] {
			case "dynamic":
				return s.command(givenergy.SetModeDynamic())
			case "storage":
				return s.command(givenergy.SetModeStorage(
					givenergy.DefaultStorageSlot(), nil, false))
			default:
				return fmt.Errorf("unknown mode %q, expected dynamic or storage", args[0])
			}
		},
	}
}

func parseTimeOfDay(s string) (givenergy.TimeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return givenergy.TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return givenergy.TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return givenergy.TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return givenergy.TimeOfDay{Hour: h, Minute: m}, nil
}

func newSlotCmd(use, short string, discharge, reset bool) *cobra.Command {
	usage := use + " <1|2>"
	if !reset {
		usage += " <start HH:MM> <end HH:MM>"
	}
	nargs := 1
	if !reset {
		nargs = 3
	}
	return &cobra.Command{
		Use:   usage,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil || (idx != 1 && idx != 2) {
				return fmt.Errorf("slot must be 1 or 2")
			}
			var slot givenergy.TimeSlot
			if !reset {
				start, err := parseTimeOfDay(args[1])
				if err != nil {
					return err
				}
				end, err := parseTimeOfDay(args[2])
				if err != nil {
					return err
				}
				slot = givenergy.TimeSlot{Start: start, End: end}
			}

			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()

			switch {
			case reset && discharge && idx == 1:
				return s.command(givenergy.ResetDischargeSlot1())
			case reset && discharge:
				return s.command(givenergy.ResetDischargeSlot2())
			case reset && idx == 1:
				return s.command(givenergy.ResetChargeSlot1())
			case reset:
				return s.command(givenergy.ResetChargeSlot2())
			case discharge && idx == 1:
				return s.command(givenergy.SetDischargeSlot1(slot))
			case discharge:
				return s.command(givenergy.SetDischargeSlot2(slot))
			case idx == 1:
				return s.command(givenergy.SetChargeSlot1(slot))
			default:
				return s.command(givenergy.SetChargeSlot2(slot))
			}
		},
	}
}

func newRebootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reboot",
		Short: "Restart the inverter",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()
			reqs, err := givenergy.SetInverterReboot()
			if err != nil {
				return err
			}
			return s.client.Execute(reqs, s.timeout, s.retries)
		},
	}
}

func newCalibrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate-soc",
		Short: "Recalibrate the battery state of charge estimate",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()
			return s.command(givenergy.SetCalibrateBatterySoc())
		},
	}
}

func newSetTimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-time",
		Short: "Set the inverter clock to the current local time",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.close()
			return s.command(givenergy.SetSystemDateTime(time.Now()))
		},
	}
}
