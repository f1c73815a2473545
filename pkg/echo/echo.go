// Package echo implements a local stand-in for the secure backend. It issues
// key-exchange sessions, holds the RSA private key, decrypts incoming
// envelopes and echoes the payload back encrypted under the same symmetric
// key, which is the behaviour the client expects from the real remote party.
package echo

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// EchoListen is the address the echo server listens on.
	EchoListen string
	// AllowedToken, when set, requires a matching bearer token on requests.
	AllowedToken string
)

// Echo runs the echo server until the process is stopped.
func Echo(cmd *cobra.Command, args []string) error {
	server, err := NewServer(0)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", withAuthorization(server.Handler()))

	fmt.Println("Listening to requests at ", EchoListen)
	if err := http.ListenAndServe(EchoListen, mux); err != nil {
		log.Fatal(err)
	}
	return nil
}

func withAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if AllowedToken != "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="Echo"`)

			s := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(s) != 2 {
				writeError(w, "bad request: malformed Authorization header", http.StatusBadRequest)
				return
			}
			if s[0] != "Bearer" || s[1] != AllowedToken {
				writeError(w, "not authorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err string, code int) {
	color.Red("-- error %d -> %s", code, err)
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, fmt.Sprintf(`{ "error": "%s", "code": %d }`, err, code), code)
}
