package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jetstack/securelink/pkg/client"
	"github.com/jetstack/securelink/pkg/exchange"
)

var (
	configFilePath string
	server         string
	token          string
	payloadPath    string
	payloadType    string
	retryFor       time.Duration
)

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "send an encrypted payload and print the decrypted response",
	Long: `Reads a JSON payload, encrypts it for a fresh key-exchange session,
posts it to the backend's exchange endpoint, and prints the decrypted
response payload (or the response as-is when the backend answered in
plaintext).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(payloadPath)
		if err != nil {
			return fmt.Errorf("failed to read payload file: %w", err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("payload file %s is not valid JSON", payloadPath)
		}

		c, err := client.New(cfg, nil)
		if err != nil {
			return err
		}

		svc := exchange.New(c)
		svc.RetryFor = retryFor

		response, err := svc.Do(cmd.Context(), json.RawMessage(data), payloadType)
		if err != nil {
			return err
		}

		var pretty any
		if err := json.Unmarshal(response, &pretty); err != nil {
			return err
		}
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// loadClientConfig merges the optional config file with command line flags;
// flags win.
func loadClientConfig() (client.Config, error) {
	var cfg client.Config
	if configFilePath != "" {
		data, err := os.ReadFile(configFilePath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = client.ParseConfig(data)
		if err != nil {
			return cfg, err
		}
	}
	if server != "" {
		cfg.Server = server
	}
	if token != "" {
		cfg.Token = token
	}
	if cfg.SessionPath == "" {
		cfg.SessionPath = "/api/session"
	}
	if cfg.ExchangePath == "" {
		cfg.ExchangePath = "/api/exchange"
	}
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(exchangeCmd)

	exchangeCmd.PersistentFlags().StringVarP(
		&configFilePath,
		"config-file",
		"c",
		"",
		"Config file location for the client.",
	)
	exchangeCmd.PersistentFlags().StringVar(
		&server,
		"server",
		"",
		"Base URL of the backend, e.g. https://api.example.com.",
	)
	exchangeCmd.PersistentFlags().StringVar(
		&token,
		"token",
		"",
		"Bearer token sent with every request.",
	)
	exchangeCmd.PersistentFlags().StringVarP(
		&payloadPath,
		"payload",
		"f",
		"",
		"Path of the JSON payload file to send.",
	)
	exchangeCmd.PersistentFlags().StringVar(
		&payloadType,
		"payload-type",
		"",
		"Optional payload type discriminator sent in the envelope.",
	)
	exchangeCmd.PersistentFlags().DurationVar(
		&retryFor,
		"retry-for",
		0,
		"Retry the envelope post with backoff for up to this long. 0 disables retries.",
	)
	_ = exchangeCmd.MarkPersistentFlagRequired("payload")
}
