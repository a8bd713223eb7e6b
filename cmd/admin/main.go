package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/alecthomas/kingpin/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/payment-transactions/internal/bootstrap"
	"github.com/kevin07696/payment-transactions/internal/config"
	"github.com/kevin07696/payment-transactions/internal/services/payment"
	"github.com/kevin07696/payment-transactions/internal/util"
	"github.com/kevin07696/payment-transactions/pkg/logging"
)

var (
	app        = kingpin.New("admin", "Back-office operations on payment transactions.")
	configPath = app.Flag("config", "Path to the application config file").Short('c').Default("").String()

	captureCmd = app.Command("capture", "Capture an authorized transaction")
	captureID  = captureCmd.Arg("id", "Transaction ID").Required().Int64()

	voidCmd = app.Command("void", "Void an authorized transaction")
	voidID  = voidCmd.Arg("id", "Transaction ID").Required().Int64()

	refundCmd    = app.Command("refund", "Refund a confirmed transaction")
	refundID     = refundCmd.Arg("id", "Transaction ID").Required().Int64()
	refundAmount = refundCmd.Flag("amount", "Amount to refund, the full amount when omitted").String()

	sweepCmd = app.Command("sweep", "Finalize the confirmed transactions left to the server")

	statusCmd       = app.Command("status", "Print the post-processing values of a transaction")
	statusReference = statusCmd.Arg("reference", "Transaction reference").Required().String()

	referenceCmd      = app.Command("reference", "Compute the next free reference for a prefix")
	referenceProvider = referenceCmd.Flag("provider", "Provider code").Default("demo").String()
	referencePrefix   = referenceCmd.Flag("prefix", "Reference prefix").String()
	referenceInvoices = referenceCmd.Flag("invoice", "Linked invoice ID").Int64List()

	tokenCmd      = app.Command("access-token", "Generate the access token of a public payment link")
	tokenPartner  = tokenCmd.Flag("partner", "Partner ID").Required().Int64()
	tokenAmount   = tokenCmd.Flag("amount", "Amount").Required().String()
	tokenCurrency = tokenCmd.Flag("currency", "ISO currency code").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Encoding, cfg.Logger.Development)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()
	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	if err := run(ctx, command, deps); err != nil {
		deps.Close()
		logger.Fatal("Command failed", zap.String("command", command), zap.Error(err))
	}
}

func run(ctx context.Context, command string, deps *bootstrap.Dependencies) error {
	svc := deps.Payments

	switch command {
	case captureCmd.FullCommand():
		tx, err := svc.SendCaptureRequest(ctx, *captureID)
		return printJSON(tx, err)

	case voidCmd.FullCommand():
		tx, err := svc.SendVoidRequest(ctx, *voidID)
		return printJSON(tx, err)

	case refundCmd.FullCommand():
		var amount *decimal.Decimal
		if *refundAmount != "" {
			parsed, err := decimal.NewFromString(*refundAmount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", *refundAmount, err)
			}
			amount = &parsed
		}
		tx, err := svc.SendRefundRequest(ctx, *refundID, amount, true)
		return printJSON(tx, err)

	case sweepCmd.FullCommand():
		result, err := svc.CronFinalizePostProcessing(ctx)
		return printJSON(result, err)

	case statusCmd.FullCommand():
		values, err := svc.GetPostProcessingValues(ctx, *statusReference)
		return printJSON(values, err)

	case referenceCmd.FullCommand():
		reference, err := svc.ComputeReference(ctx, *referenceProvider, payment.ReferenceParams{
			Prefix:     *referencePrefix,
			InvoiceIDs: *referenceInvoices,
		})
		if err != nil {
			return err
		}
		fmt.Println(reference)
		return nil

	case tokenCmd.FullCommand():
		amount, err := decimal.NewFromString(*tokenAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", *tokenAmount, err)
		}
		secret, err := deps.Keyring.ServerSecret(ctx)
		if err != nil {
			return err
		}
		fmt.Println(util.GenerateAccessToken(secret, strconv.FormatInt(*tokenPartner, 10), amount.String(), *tokenCurrency))
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}

func printJSON(v interface{}, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
