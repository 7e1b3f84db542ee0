package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/database"
	"github.com/incognitochain/etn-bridge/entities"
	"github.com/incognitochain/etn-bridge/ledger"
	"github.com/incognitochain/etn-bridge/notifier"
	"github.com/incognitochain/etn-bridge/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cfg *Config

var rootCmd = &cobra.Command{
	Use:   "etnbridge",
	Short: "ETN legacy chain to destination ledger bridge",
	Long:  `Record cross chain transfers reported from the legacy ETN chain, fund the bridge vault and query the reconciliation ledger`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig()
		if err != nil {
			return err
		}
		logrus.SetLevel(cfg.LogLevel)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		utils.SetSlackWebhookURLs(cfg.AlertWebhookURL, cfg.InfoWebhookURL)
		return nil
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workers and the query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		logrus.WithFields(logrus.Fields{
			"dbDir":    cfg.DBDir,
			"inboxDir": cfg.ReportInboxDir,
			"httpPort": cfg.HTTPPort,
			"workers":  cfg.Workers,
		}).Info("Starting bridge service")

		s, err := NewServer(cfg)
		if err != nil {
			return err
		}
		s.Run()
		s.Wait()
		logrus.Info("Server stopped gracefully!")
		return nil
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit <from> <amount>",
	Short: "Fund the bridge vault (amount in ETN, or wei with --wei)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid address %q", args[0])
		}
		amount, err := parseAmountArg(cmd, args[1])
		if err != nil {
			return err
		}
		return withLedger(func(l *ledger.Ledger) error {
			receipt, err := l.Deposit(common.HexToAddress(args[0]), amount)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"from":         receipt.From.Hex(),
				"amount":       receipt.Amount.Dec(),
				"vaultBalance": receipt.VaultBalance.Dec(),
				"eventSeq":     receipt.EventSeq,
			})
		})
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <destination> <legacy-address> <amount> <tx-hash>",
	Short: "Record a cross chain transfer (amount in ETN, or wei with --wei)",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmountArg(cmd, args[2])
		if err != nil {
			return err
		}
		feeWaived, _ := cmd.Flags().GetBool("fee-waived")
		// a malformed destination is passed as the zero address so that the
		// ledger reports the failure in its own order
		var destination common.Address
		if common.IsHexAddress(args[0]) {
			destination = common.HexToAddress(args[0])
		}
		return withLedger(func(l *ledger.Ledger) error {
			receipt, err := l.RecordTransfer(destination, entities.LegacyAddress(args[1]), amount, entities.TxID(args[3]), feeWaived)
			if err != nil {
				if kind, ok := ledger.KindOf(err); ok {
					return fmt.Errorf("transfer rejected (%v): %w", kind, err)
				}
				return err
			}
			return printJSON(map[string]interface{}{
				"seq":          receipt.Seq,
				"txHash":       string(receipt.TxID),
				"destination":  receipt.Destination.Hex(),
				"amount":       receipt.Amount.Dec(),
				"newMapping":   receipt.NewMapping,
				"accountTotal": receipt.AccountTotal.Dec(),
				"vaultBalance": receipt.VaultBalance.Dec(),
				"feeWaived":    receipt.FeeWaived,
				"eventSeq":     receipt.EventSeq,
			})
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Query a running service through its API",
}

var showStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger and vault totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := utils.NewHttpClient(cfg.APIURL).GetStats()
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var showAccountCmd = &cobra.Command{
	Use:   "account <address>",
	Short: "Show legacy addresses, transfers and totals of a destination account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := utils.NewHttpClient(cfg.APIURL).GetAccount(args[0])
		if err != nil {
			return err
		}
		return printJSON(account)
	},
}

var showLegacyCmd = &cobra.Command{
	Use:   "legacy <legacy-address>",
	Short: "Show the destination a legacy address is mapped to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		legacy, err := utils.NewHttpClient(cfg.APIURL).GetLegacy(args[0])
		if err != nil {
			return err
		}
		return printJSON(legacy)
	},
}

var showTxCmd = &cobra.Command{
	Use:   "tx <tx-hash>",
	Short: "Show a recorded legacy transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := utils.NewHttpClient(cfg.APIURL).GetTx(args[0])
		if err != nil {
			return err
		}
		return printJSON(tx)
	},
}

var showEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Page through the event journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetUint64("from")
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := utils.NewHttpClient(cfg.APIURL).GetEvents(from, limit)
		if err != nil {
			return err
		}
		return printJSON(events)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{depositCmd, transferCmd} {
		cmd.Flags().Bool("wei", false, "amount is given in wei")
	}
	transferCmd.Flags().Bool("fee-waived", false, "the bridging fee was waived for this transfer")
	showEventsCmd.Flags().Uint64("from", 1, "first event sequence number")
	showEventsCmd.Flags().Int("limit", 100, "maximum number of events")

	showCmd.AddCommand(showStatsCmd, showAccountCmd, showLegacyCmd, showTxCmd, showEventsCmd)
	rootCmd.AddCommand(serveCmd, depositCmd, transferCmd, showCmd)
}

func parseAmountArg(cmd *cobra.Command, value string) (*uint256.Int, error) {
	if wei, _ := cmd.Flags().GetBool("wei"); wei {
		return utils.ParseWei(value)
	}
	return utils.ConvertETNToWei(value)
}

// withLedger opens the ledger for a one-off command. leveldb allows a single
// process per directory, so this fails while the service is running.
func withLedger(fn func(l *ledger.Ledger) error) error {
	db, err := database.Open(cfg.DBDir)
	if err != nil {
		if database.IsLocked(err) {
			return errors.New("the ledger database is in use, stop the service or drop a report into its inbox instead")
		}
		return err
	}
	defer db.Close()
	n := notifier.New(notifier.DefaultBufferSize, nil, nil)
	n.Start()
	defer n.Stop()
	l, err := ledger.Open(db, n, nil)
	if err != nil {
		return err
	}
	return fn(l)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
