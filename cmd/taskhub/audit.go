package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"taskhub/pkg/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the audit hash chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.Close()

		chain, err := be.repos.Audit.Chain(cmd.Context())
		if err != nil {
			return err
		}
		if err := audit.Verify(chain); err != nil {
			return err
		}
		cmd.Printf("audit chain intact: %d entries\n", len(chain))
		return nil
	},
}

var auditTailN int

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent audit entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.Close()

		entries, err := be.repos.Audit.Recent(cmd.Context(), auditTailN)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{formatTime(e.Timestamp), strconv.FormatInt(e.UserID, 10), e.Action, e.Details})
		}
		printTable(cmd.OutOrStdout(), []string{"TIME", "USER", "ACTION", "DETAILS"}, rows)
		return nil
	},
}

func init() {
	auditTailCmd.Flags().IntVarP(&auditTailN, "lines", "n", 20, "number of entries")
	auditCmd.AddCommand(auditVerifyCmd, auditTailCmd)
	rootCmd.AddCommand(auditCmd)
}
