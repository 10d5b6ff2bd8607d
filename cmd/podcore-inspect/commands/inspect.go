package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kaylen-rios/podcomms/internal/logger"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/ledger"
	"github.com/kaylen-rios/podcomms/pkg/podcomms/podstate"
)

// report is the projection of a PodState that every output format
// renders; table output is built from the same report.
type report struct {
	Address       uint32 `json:"address" yaml:"address"`
	SetupProgress string `json:"setupProgress" yaml:"setupProgress"`
	SuspendState  string `json:"suspendState" yaml:"suspendState"`
	Fault         string `json:"fault,omitempty" yaml:"fault,omitempty"`
	ActivatedAt   string `json:"activatedAt,omitempty" yaml:"activatedAt,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`

	UnfinalizedDoses []doseRow `json:"unfinalizedDoses,omitempty" yaml:"unfinalizedDoses,omitempty"`
	FinalizedDoses   []doseRow `json:"finalizedDoses,omitempty" yaml:"finalizedDoses,omitempty"`
}

type doseRow struct {
	Kind      string  `json:"kind" yaml:"kind"`
	Amount    float64 `json:"amount" yaml:"amount"`
	Start     string  `json:"start" yaml:"start"`
	Certainty string  `json:"certainty" yaml:"certainty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	runID := uuid.New().String()
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("podcore-inspect: read blob: %w", err)
	}

	state, err := podstate.Decode(data, time.Now())
	if err != nil {
		return fmt.Errorf("podcore-inspect: decode blob: %w", err)
	}
	logger.Info("blob decoded", "run_id", runID, "file", args[0], "setup_progress", state.SetupProgress.String())

	rep := toReport(state)

	switch strings.ToLower(outputFormat) {
	case "json":
		return printJSON(cmd, rep)
	case "yaml", "yml":
		return printYAML(cmd, rep)
	default:
		printTable(cmd, rep)
		return nil
	}
}

func toReport(s *podstate.PodState) report {
	rep := report{
		Address:       s.Address,
		SetupProgress: s.SetupProgress.String(),
		SuspendState:  fmt.Sprintf("%s at %s", s.SuspendState.Tag, formatTime(s.SuspendState.At)),
	}
	if s.Fault != nil {
		rep.Fault = fmt.Sprintf("code=%d progress=%s bolusNotDelivered=%.2f", s.Fault.FaultEventCode, s.Fault.PodProgressStatus, s.Fault.BolusNotDelivered)
	}
	if !s.ActivatedAt.IsZero() {
		rep.ActivatedAt = formatTime(s.ActivatedAt)
	}
	if !s.ExpiresAt.IsZero() {
		rep.ExpiresAt = formatTime(s.ExpiresAt)
	}

	for _, d := range []*ledger.UnfinalizedDose{s.Ledger.Bolus(), s.Ledger.TempBasal(), s.Ledger.Suspend(), s.Ledger.Resume()} {
		if d != nil {
			rep.UnfinalizedDoses = append(rep.UnfinalizedDoses, toDoseRow(*d))
		}
	}
	for _, d := range s.Ledger.Finalized() {
		rep.FinalizedDoses = append(rep.FinalizedDoses, toDoseRow(d))
	}
	return rep
}

func toDoseRow(d ledger.UnfinalizedDose) doseRow {
	return doseRow{Kind: d.Kind.String(), Amount: d.Amount, Start: formatTime(d.StartTime), Certainty: certaintyString(d.Certainty)}
}

func certaintyString(c ledger.Certainty) string {
	if c == ledger.Certain {
		return "certain"
	}
	return "uncertain"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func printJSON(cmd *cobra.Command, rep report) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func printYAML(cmd *cobra.Command, rep report) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer func() { _ = enc.Close() }()
	return enc.Encode(rep)
}

func printTable(cmd *cobra.Command, rep report) {
	w := cmd.OutOrStdout()
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"FIELD", "VALUE"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	rows := [][]string{
		{"Address", fmt.Sprintf("0x%08x", rep.Address)},
		{"Setup Progress", rep.SetupProgress},
		{"Suspend State", rep.SuspendState},
	}
	if rep.Fault != "" {
		rows = append(rows, []string{"Fault", rep.Fault})
	}
	if rep.ActivatedAt != "" {
		rows = append(rows, []string{"Activated At", rep.ActivatedAt})
	}
	if rep.ExpiresAt != "" {
		rows = append(rows, []string{"Expires At", rep.ExpiresAt})
	}
	for _, d := range rows {
		table.Append(d)
	}
	table.Render()

	if len(rep.UnfinalizedDoses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Unfinalized doses:")
		printDoseTable(w, rep.UnfinalizedDoses)
	}
	if len(rep.FinalizedDoses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Finalized doses:")
		printDoseTable(w, rep.FinalizedDoses)
	}
}

func printDoseTable(w io.Writer, doses []doseRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"KIND", "AMOUNT", "START", "CERTAINTY"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	for _, d := range doses {
		table.Append([]string{d.Kind, fmt.Sprintf("%.3f", d.Amount), d.Start, d.Certainty})
	}
	table.Render()
}
