package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/otg-controller/internal/device"
	"github.com/nerrad567/otg-controller/internal/imouse"
	"github.com/nerrad567/otg-controller/internal/infrastructure/logging"
)

// syncTimeout bounds the discovery call to the bridge.
const syncTimeout = 30 * time.Second

// DeviceLister lists the devices the actuation bridge currently sees.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]device.Discovered, error)
}

func newDevicesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect and synchronise devices",
	}
	cmd.AddCommand(newDevicesSyncCommand(opts))
	cmd.AddCommand(newDevicesListCommand(opts))
	return cmd
}

func newDevicesSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge the bridge's device list into the local database",
		Long: `Ask the iMouseXP bridge for its connected devices and merge them into the
local database. Known devices keep their labels and calibration; devices
the bridge no longer reports are marked offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging, version)

			bridge := imouse.New(cfg.IMouse)
			bridge.SetLogger(log.Component("imouse"))

			return withRegistry(cmd.Context(), opts, func(ctx context.Context, reg *device.Registry) error {
				return syncDevices(ctx, bridge, reg, cmd.OutOrStdout())
			})
		},
	}
}

func newDevicesListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored devices and their calibration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(cmd.Context(), opts, func(ctx context.Context, reg *device.Registry) error {
				devices, err := reg.ListDevices(ctx)
				if err != nil {
					return err
				}
				return printDevices(cmd.OutOrStdout(), devices)
			})
		},
	}
}

// withRegistry opens the database, loads the device registry and runs fn.
func withRegistry(ctx context.Context, opts *rootOptions, fn func(context.Context, *device.Registry) error) error {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-mostly CLI session

	reg := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	if err := reg.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}
	return fn(ctx, reg)
}

// syncDevices pulls the bridge's device list and merges it into reg.
func syncDevices(ctx context.Context, bridge DeviceLister, reg *device.Registry, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	found, err := bridge.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing bridge devices: %w", err)
	}
	res, err := reg.Merge(ctx, found)
	if err != nil {
		return fmt.Errorf("merging devices: %w", err)
	}

	_, err = fmt.Fprintf(out, "found %d: %d added, %d updated, %d marked offline\n",
		len(found), res.Added, res.Updated, res.Offline)
	return err
}

// printDevices writes one row per device with its per-platform readiness.
func printDevices(out io.Writer, devices []device.Device) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tSIZE\tSTATE\tTIKTOK\tINSTAGRAM")
	for i := range devices {
		d := &devices[i]
		w, h := d.EffectiveSize()
		state := d.State
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%s\t%s\t%s\n",
			d.ID, d.Label, w, h, state,
			readiness(d, device.PlatformTikTok), readiness(d, device.PlatformInstagram))
	}
	return tw.Flush()
}

func readiness(d *device.Device, p device.Platform) string {
	if d.HasLike(p) {
		return "ready"
	}
	return "-"
}
