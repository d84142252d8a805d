package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go-photos-archiver/internal/helpers"
	"go-photos-archiver/internal/ledger"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	ledgerPathFlag    string
	ledgerBackendFlag string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the ledger of archived media items",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every archived media item",
	RunE:  runLedgerList,
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that archived files still exist and match their checksums",
	Long: `Checks every ledger record that has a local path: the file must exist
and, when a checksum was recorded, its BLAKE3 digest must still match.
Records without a local path (older rows, S3 archives) are skipped.`,
	RunE: runLedgerVerify,
}

var ledgerHasCmd = &cobra.Command{
	Use:   "has [MEDIA_ITEM_ID]",
	Short: "Report whether a media item has been archived",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerHas,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd, ledgerVerifyCmd, ledgerHasCmd)

	ledgerCmd.PersistentFlags().StringVar(&ledgerPathFlag, "db-path", "", "Ledger location (overrides DatabasePath)")
	ledgerCmd.PersistentFlags().StringVar(&ledgerBackendFlag, "ledger", "", "Ledger backend: sqlite, bitcask or bolt (overrides LedgerBackend)")
}

func openLedger(cmd *cobra.Command) (ledger.Ledger, error) {
	cfg := globalConfig
	if ledgerPathFlag != "" {
		cfg.DatabasePath = ledgerPathFlag
	}
	if ledgerBackendFlag != "" {
		cfg.LedgerBackend = ledgerBackendFlag
	}
	if cfg.LedgerBackend == ledger.BackendMemory {
		return nil, errors.New("the memory ledger does not outlive a run and cannot be inspected")
	}
	if cfg.DatabasePath == "" {
		return nil, errors.New("ledger path is not set, use --db-path or DatabasePath")
	}
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("no ledger at %s: %w", cfg.DatabasePath, err)
	}
	log.Debugf("Opening %s ledger at %s", cfg.LedgerBackend, cfg.DatabasePath)
	return ledger.Open(cmd.Context(), cfg.LedgerBackend, cfg.DatabasePath, log.StandardLogger())
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	l, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	records, err := l.Records(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFilename\tArchived At\tPath")
	fmt.Fprintln(tw, "--\t--------\t-----------\t----")
	for _, rec := range records {
		archivedAt := ""
		if !rec.ArchivedAt.IsZero() {
			archivedAt = rec.ArchivedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ID, rec.Filename, archivedAt, rec.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	log.Infof("Displayed %d entries.", len(records))
	return nil
}

type verificationProblem struct {
	Record ledger.Record
	Reason string
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	l, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	records, err := l.Records(cmd.Context())
	if err != nil {
		return err
	}

	var ok, skipped int
	var problems []verificationProblem
	for _, rec := range records {
		if reason, checked := verifyRecord(rec); !checked {
			skipped++
		} else if reason != "" {
			problems = append(problems, verificationProblem{Record: rec, Reason: reason})
		} else {
			ok++
		}
	}

	out := cmd.OutOrStdout()
	if len(problems) > 0 {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPath\tProblem")
		for _, p := range problems {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Record.ID, p.Record.Path, p.Reason)
		}
		_ = tw.Flush()
	}
	fmt.Fprintf(out, "Verified: %d OK, %d problem(s), %d skipped\n", ok, len(problems), skipped)

	if len(problems) > 0 {
		return fmt.Errorf("%d archived file(s) failed verification", len(problems))
	}
	return nil
}

// isLocalPath is false for object-store locations such as s3://bucket/key.
func isLocalPath(p string) bool {
	return p != "" && !strings.Contains(p, "://")
}

// verifyRecord returns checked=false when rec carries no local path.
func verifyRecord(rec ledger.Record) (reason string, checked bool) {
	if !isLocalPath(rec.Path) {
		return "", false
	}
	info, err := os.Stat(rec.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "missing", true
		}
		return fmt.Sprintf("unreadable: %v", err), true
	}
	if info.IsDir() {
		return "not a file", true
	}
	if rec.Checksum == "" {
		return "", true
	}
	sum, err := helpers.FileChecksum(rec.Path)
	if err != nil {
		return fmt.Sprintf("unreadable: %v", err), true
	}
	if sum != rec.Checksum {
		return "checksum mismatch", true
	}
	return "", true
}

func runLedgerHas(cmd *cobra.Command, args []string) error {
	l, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	id := args[0]
	rec, found, err := l.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch {
	case !found:
		fmt.Fprintf(out, "%s: not archived\n", id)
	case rec.Path != "":
		fmt.Fprintf(out, "%s: archived at %s (%s)\n", id, rec.Path, describeSize(rec.Path))
	default:
		fmt.Fprintf(out, "%s: archived\n", id)
	}
	return nil
}

func describeSize(path string) string {
	if !isLocalPath(path) {
		return "remote"
	}
	info, err := os.Stat(path)
	if err != nil {
		return "not on local disk"
	}
	return helpers.BytesToSize(uint64(info.Size()))
}
