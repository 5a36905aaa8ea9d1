// Package ui provides terminal UI components for the ccufind CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output.
// Most components follow a "render once and print" pattern; ScanModel is
// the only interactive piece and exists to show progress while a search
// runs.
//
// # Components
//
//   - Header: Command banner showing the operation and its parameters
//   - Progress: Progress bar with one row per interface session
//   - Result: Success/warning/failure boxes with troubleshooting tips
//   - ScanModel: Spinner plus Progress, driven by discovery session reports
//   - FormatDevices: detailed, compact, json and yaml renderings of a scan
//
// # Usage Pattern
//
//	devices, err := ui.RunScan(ctx, os.Stdout, names,
//	    func(ctx context.Context, report func(discovery.SessionReport)) ([]discovery.Device, error) {
//	        svc := discovery.NewService(cfg, discovery.WithProgress(report))
//	        return svc.SearchAllInterfaces(ctx, localIP)
//	    })
//
// # Logging Integration
//
// zap logging is silent unless CCUFIND_LOG_LEVEL or --log-level is set,
// so log lines never interleave with the styled output. Logs go to stderr.
package ui
