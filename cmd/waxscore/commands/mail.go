package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"waxscore/internal/connectors"
	"waxscore/internal/listener"
)

var (
	mailProvider  string
	mailLabel     string
	mailMax       int
	mailMessageID string
	mailBatch     int
)

var mailFetchCmd = &cobra.Command{
	Use:   "mail:fetch",
	Short: "Fetch mails with spec sheet attachments into the local store",
	RunE:  runMailFetch,
}

var mailProcessCmd = &cobra.Command{
	Use:   "mail:process",
	Short: "Score fetched mails",
	RunE:  runMailProcess,
}

var mailListenCmd = &cobra.Command{
	Use:   "mail:listen",
	Short: "Poll the mailbox, score new spec sheets and export them",
	RunE:  runMailListen,
}

func init() {
	for _, c := range []*cobra.Command{mailFetchCmd, mailProcessCmd} {
		c.Flags().StringVar(&mailProvider, "provider", "", "gmail|imap (defaults to MAIL_LISTENER_PROVIDER)")
	}
	mailFetchCmd.Flags().StringVar(&mailLabel, "label", "", "mailbox or label (defaults to MAIL_LISTENER_LABEL)")
	mailFetchCmd.Flags().IntVar(&mailMax, "max", 0, "maximum messages to fetch (defaults to MAIL_LISTENER_FETCH_MAX)")
	mailProcessCmd.Flags().StringVar(&mailMessageID, "message-id", "", "process a single stored message")
	mailProcessCmd.Flags().IntVar(&mailBatch, "batch", 0, "maximum pending messages to process (defaults to MAIL_LISTENER_PROCESS_BATCH)")
	rootCmd.AddCommand(mailFetchCmd, mailProcessCmd, mailListenCmd)
}

func resolvedProvider() string {
	if mailProvider != "" {
		return mailProvider
	}
	return state.cfg.MailListenerProvider
}

func runMailFetch(cmd *cobra.Command, args []string) error {
	db, err := state.openDB()
	if err != nil {
		return err
	}
	connector, err := connectors.New(state.cfg, resolvedProvider())
	if err != nil {
		return err
	}
	label := mailLabel
	if label == "" {
		label = state.cfg.MailListenerLabel
	}
	max := mailMax
	if max <= 0 {
		max = state.cfg.MailListenerFetchMax
	}

	res, err := connectors.NewFetchService(db, state.cfg.RawMailDir, connector, state.log).FetchAndStore(cmd.Context(), label, max)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, stored %d\n", res.Fetched, res.Stored)
	return nil
}

func runMailProcess(cmd *cobra.Command, args []string) error {
	db, err := state.openDB()
	if err != nil {
		return err
	}
	processor := state.processor(db)

	if mailMessageID != "" {
		res, err := processor.ProcessByProviderMessageID(cmd.Context(), resolvedProvider(), mailMessageID)
		if err != nil {
			return err
		}
		renderRanking(cmd.OutOrStdout(), res.Records, state.scorer.MaxScore())
		return nil
	}

	batch := mailBatch
	if batch <= 0 {
		batch = state.cfg.MailListenerProcessBatch
	}
	emails, records, err := processor.ProcessPending(cmd.Context(), batch, mailProvider)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "processed %d mails, %d records\n", emails, records)
	return nil
}

func runMailListen(cmd *cobra.Command, args []string) error {
	db, err := state.openDB()
	if err != nil {
		return err
	}
	svc := listener.NewService(db, state.cfg, state.processor(db), state.log)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return serveWithMetrics(ctx, svc.Run)
}
