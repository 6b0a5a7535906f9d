package main

import (
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/drivopay/payments/internal/signature"
)

type signSecrets struct {
	KeySecret     string `env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string `env:"RAZORPAY_WEBHOOK_SECRET"`
}

func loadSignSecrets(override string) (signSecrets, error) {
	_ = godotenv.Load(".env")

	var secrets signSecrets
	if err := env.Parse(&secrets); err != nil {
		return secrets, err
	}
	if override != "" {
		secrets.KeySecret, secrets.WebhookSecret = override, override
	}
	return secrets, nil
}

func signCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute gateway signatures for local testing",
		Long: `Compute the signatures the gateway would send, for exercising the
webhook and verify-payment routes locally.

Examples:
  drivopay-payments sign webhook payload.json
  cat payload.json | drivopay-payments sign webhook
  drivopay-payments sign payment order_9A33XWu170gUtm pay_29QQoUBi66xm2f`,
	}
	cmd.PersistentFlags().StringVar(&secret, "secret", "", "secret to sign with (defaults to the configured one)")

	cmd.AddCommand(&cobra.Command{
		Use:   "webhook [file]",
		Short: "Sign a webhook body read from file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets, err := loadSignSecrets(secret)
			if err != nil {
				return err
			}
			if secrets.WebhookSecret == "" {
				return fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is not set and --secret was not given")
			}

			var body []byte
			if len(args) == 1 {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), signature.ComputeHMAC(secrets.WebhookSecret, body))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "payment <orderId> <paymentId>",
		Short: "Sign a checkout callback",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets, err := loadSignSecrets(secret)
			if err != nil {
				return err
			}
			if secrets.KeySecret == "" {
				return fmt.Errorf("RAZORPAY_KEY_SECRET is not set and --secret was not given")
			}

			fmt.Fprintln(cmd.OutOrStdout(), signature.ComputeHMAC(secrets.KeySecret, signature.PaymentMessage(args[0], args[1])))
			return nil
		},
	})

	return cmd
}
