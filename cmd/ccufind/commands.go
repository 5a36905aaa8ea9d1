package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/ccufind/internal/config"
	"github.com/muurk/ccufind/internal/discovery"
	"github.com/muurk/ccufind/internal/netif"
	"github.com/muurk/ccufind/internal/protocol"
	"github.com/muurk/ccufind/internal/ui"
)

// scanOptions holds the scan command flags
type scanOptions struct {
	localIP    string
	timeoutMs  int
	retries    int
	interfaces []string
	format     string
	tui        bool
}

var scanOpts scanOptions

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(interfacesCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(opcodesCmd)
}

// scanCmd discovers CCUs on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for CCUs on the local network",
	Long: `Scan for CCUs using the multicast Identify probe.

Each up, multicast-capable IPv4 interface gets its own socket. The probe is
sent to 224.0.0.1:43439 once per retry, waiting up to the timeout for a
reply after each send. Replies from all interfaces are merged so that every
host is listed once.

Values from the config file are used unless a flag overrides them.`,
	Example: `  # Scan with defaults (2 probes, 2s timeout per interface)
  ccufind scan

  # Longer scan on one interface only
  ccufind scan --interface eth0 --timeout 5000 --retries 4

  # Bind group membership to a specific local address
  ccufind scan --local-ip 192.168.1.10

  # JSON output for scripting
  ccufind scan --format json

  # Live progress view
  ccufind scan --tui`,
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&scanOpts.localIP, "local-ip", "", "Local IPv4 address for group membership (default: each interface's own address)")
	f.IntVar(&scanOpts.timeoutMs, "timeout", int(discovery.DefaultTimeout/time.Millisecond), "Send/receive timeout per attempt in milliseconds")
	f.IntVar(&scanOpts.retries, "retries", discovery.DefaultRetryCount, "Number of probes per interface")
	f.StringSliceVar(&scanOpts.interfaces, "interface", nil, "Restrict the scan to these interfaces (repeatable)")
	f.StringVar(&scanOpts.format, "format", config.FormatDetailed, "Output format (detailed, compact, json, yaml)")
	f.BoolVar(&scanOpts.tui, "tui", false, "Show a live progress view while scanning")
}

// scanSettings is the merged result of config file and flags
type scanSettings struct {
	discovery discovery.Config
	localIP   string
	format    string
}

// resolveScan merges the file settings with the flags the user set.
// changed reports whether a flag was given on the command line.
func resolveScan(file *config.Config, opts scanOptions, changed func(string) bool) (scanSettings, error) {
	s := scanSettings{
		discovery: file.DiscoveryConfig(),
		localIP:   file.LocalIP(),
		format:    file.OutputFormat(),
	}

	if changed("timeout") {
		if opts.timeoutMs <= 0 {
			return s, fmt.Errorf("--timeout must be positive (got %d)", opts.timeoutMs)
		}
		s.discovery.Timeout = time.Duration(opts.timeoutMs) * time.Millisecond
	}
	if changed("retries") {
		if opts.retries < 0 {
			return s, fmt.Errorf("--retries must not be negative (got %d)", opts.retries)
		}
		s.discovery.RetryCount = opts.retries
	}
	if changed("interface") {
		s.discovery.Interfaces = opts.interfaces
	}
	if changed("local-ip") {
		s.localIP = opts.localIP
	}
	if changed("format") {
		s.format = opts.format
	}

	if !slices.Contains(config.OutputFormats, s.format) {
		return s, fmt.Errorf("unknown format %q (expected one of %s)", s.format, strings.Join(config.OutputFormats, ", "))
	}

	return s, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.Load()
	if err != nil {
		return err
	}

	settings, err := resolveScan(fileCfg, scanOpts, cmd.Flags().Changed)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	human := settings.format == config.FormatDetailed || settings.format == config.FormatCompact
	printer := ui.NewPrinter(out)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := discovery.NewService(settings.discovery)

	eligible, err := svc.EligibleInterfaces()
	if err != nil {
		if human {
			printer.PrintError("No usable network interface", err, ui.NoInterfaceTips)
		}
		return err
	}

	if settings.format == config.FormatDetailed {
		printer.PrintHeader("CCU Discovery", "ccufind scan", scanParams(settings, eligible)...)
		printer.Newline()
	}

	var devices []discovery.Device
	if scanOpts.tui && human && ui.IsTerminal() {
		names := make([]string, len(eligible))
		for i, iface := range eligible {
			names[i] = iface.Name
		}
		devices, err = ui.RunScan(ctx, out, names,
			func(ctx context.Context, report func(discovery.SessionReport)) ([]discovery.Device, error) {
				return discovery.NewService(settings.discovery, discovery.WithProgress(report)).
					SearchInterfaces(ctx, settings.localIP, eligible)
			})
	} else {
		devices, err = svc.SearchAllInterfaces(ctx, settings.localIP)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("scan cancelled")
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	if !human {
		text, err := ui.FormatDevices(devices, settings.format, printer.Width())
		if err != nil {
			return err
		}
		printer.Print(text)
		return nil
	}

	if len(devices) == 0 {
		printer.PrintWarning("No CCUs found", ui.NoDeviceTips,
			ui.Param{Key: "Interfaces", Value: fmt.Sprint(len(eligible))})
		return nil
	}

	text, err := ui.FormatDevices(devices, settings.format, printer.Width())
	if err != nil {
		return err
	}
	printer.Print(text)

	if settings.format == config.FormatDetailed {
		printer.Newline()
		printer.PrintSuccess(fmt.Sprintf("%d CCU(s) found", len(devices)),
			ui.Param{Key: "Interfaces", Value: fmt.Sprint(len(eligible))})
	}
	return nil
}

// scanParams lists the effective settings for the scan header
func scanParams(s scanSettings, eligible []netif.Interface) []ui.Param {
	names := make([]string, len(eligible))
	for i, iface := range eligible {
		names[i] = iface.Name
	}

	localIP := s.localIP
	if localIP == "" {
		localIP = "per interface"
	}

	return []ui.Param{
		{Key: "Group", Value: s.discovery.GroupString()},
		{Key: "Interfaces", Value: strings.Join(names, ", ")},
		{Key: "Local IP", Value: localIP},
		{Key: "Timeout", Value: s.discovery.Timeout.String()},
		{Key: "Retries", Value: fmt.Sprint(s.discovery.RetryCount)},
	}
}

// interfacesCmd lists local interfaces and whether a scan would use them
var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List network interfaces and their discovery eligibility",
	Long: `List the host's network interfaces.

An interface is eligible for discovery when it is up, supports multicast
and has an IPv4 address. Only eligible interfaces are probed by 'scan'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ifaces, err := netif.NewSystemProvider().Interfaces()
		if err != nil {
			return fmt.Errorf("failed to list network interfaces: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, ui.RenderInterfaces(ifaces))

		if len(netif.FilterEligible(ifaces)) == 0 {
			fmt.Fprintln(out)
			ui.NewPrinter(out).PrintError("No usable network interface",
				discovery.ErrNoMulticastInterface, ui.NoInterfaceTips)
		}
		return nil
	},
}

var (
	probeSeed   uint64
	probeOpcode string
)

// probeCmd prints a probe without sending it
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print a discovery probe and its fields",
	Long: `Build a probe message the way 'scan' does and print it with a field
breakdown. Nothing is sent. Use --seed for a reproducible sender id.`,
	Example: `  ccufind probe
  ccufind probe --seed 42
  ccufind probe --opcode GetNetworkAddress`,
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := protocol.ParseOpcode(probeOpcode)
		if err != nil {
			return err
		}

		var src protocol.RandomSource
		if cmd.Flags().Changed("seed") {
			src = rand.New(rand.NewPCG(probeSeed, probeSeed))
		}

		data, err := protocol.NewProbeBuilder(src).Build(op)
		if err != nil {
			return err
		}
		fields, err := protocol.ParseProbe(data)
		if err != nil {
			return err
		}

		return printProbe(cmd.OutOrStdout(), data, fields)
	},
}

func init() {
	probeCmd.Flags().Uint64Var(&probeSeed, "seed", 0, "Seed for the sender id generator")
	probeCmd.Flags().StringVar(&probeOpcode, "opcode", protocol.OpIdentify.String(), "Opcode name")
}

func printProbe(w io.Writer, data []byte, f *protocol.ProbeFields) error {
	rows := [][2]string{
		{"Text", fmt.Sprintf("%q", protocol.DecodeText(data))},
		{"Hex", hex.EncodeToString(data)},
		{"Version", f.Version},
		{"Sender ID", fmt.Sprint(f.SenderID)},
		{"Counter", f.Counter},
		{"Device type", f.DeviceType},
		{"Serial", fmt.Sprintf("%q", f.Serial)},
		{"Opcode", fmt.Sprintf("%d (%s)", uint8(f.Opcode), f.Opcode)},
		{"Payload", f.Payload},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", r[0]+":", r[1]); err != nil {
			return err
		}
	}
	return nil
}

// opcodesCmd lists the command vocabulary
var opcodesCmd = &cobra.Command{
	Use:   "opcodes",
	Short: "List the CCU command opcodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TableHeaderStyle.Render(fmt.Sprintf("%-34s %5s  %s", "NAME", "VALUE", "CHAR")))
		for _, op := range protocol.Opcodes() {
			fmt.Fprintf(out, "%-34s %5d  %c\n", op, uint8(op), rune(op))
		}
		return nil
	},
}

// printDocument writes v as indented JSON or YAML
func printDocument(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", format)
}
