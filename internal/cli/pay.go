package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	appPayment "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application/payment"
	httppresentation "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/presentation/http"
)

func payCmd(g *globals) *cobra.Command {
	var (
		reference string
		baseURL   string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "pay <payment-link-id>",
		Short: "Deliver a signed payment_link.paid notification to a running backend",
		Long: `Simulate the payment provider confirming a link. The body is signed
with payment.webhook_secret, exactly as the provider would.

Examples:
  kiosk pay plink_3f2a --reference ord-42
  kiosk pay plink_3f2a --url http://kiosk.local:3001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			body, err := appPayment.PaidNotificationBody(args[0], reference)
			if err != nil {
				return err
			}
			signature := appPayment.NewAuthenticator(cfg.Payment.WebhookSecret).Sign(body)

			req, err := http.NewRequestWithContext(contextOrBackground(cmd), http.MethodPost,
				strings.TrimRight(baseURL, "/")+httppresentation.RouteWebhook, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(httppresentation.HeaderSignature, signature)

			resp, err := (&http.Client{Timeout: timeout}).Do(req)
			if err != nil {
				return fmt.Errorf("deliver notification: %w", err)
			}
			defer resp.Body.Close()
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", resp.Status, strings.TrimSpace(string(respBody)))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("webhook rejected: %s", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "order id carried as reference_id")
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:3001", "backend base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}
