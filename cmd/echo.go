package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jetstack/securelink/pkg/echo"
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "starts an echo server to test the client",
	Long: `The client sends encrypted envelopes to a backend. This echo server
can be used to act as the backend part: it issues sessions, decrypts
envelopes it receives and echoes the payload back encrypted.`,
	RunE: echo.Echo,
}

func init() {
	rootCmd.AddCommand(echoCmd)
	echoCmd.PersistentFlags().StringVarP(
		&echo.EchoListen,
		"listen",
		"l",
		":8080",
		"Address where to listen.",
	)

	echoCmd.PersistentFlags().StringVarP(
		&echo.AllowedToken,
		"token",
		"t",
		"",
		"Token to allow requests. If empty, no authentication is required.",
	)
}
