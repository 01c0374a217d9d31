package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	applog "cashbook/internal/log"
	gsheet "cashbook/internal/sheets/google"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func sheetsAuthCmd() *cobra.Command {
	var port, tokenFile string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize Google Sheets access with a user account",
		Long: `Runs the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_JSON or
GOOGLE_OAUTH_CLIENT_FILE and saves the token. Point GOOGLE_OAUTH_TOKEN_FILE at
the saved file to make the notify worker and "rates import-sheet" use it.

The client must list http://localhost:PORT/callback as a redirect URI.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oc, err := gsheet.OAuthConfig(gsheet.ConfigFromEnv())
			if err != nil {
				return err
			}
			oc.RedirectURL = "http://localhost:" + port + "/callback"

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			state := uuid.NewString()
			code, err := awaitAuthCode(ctx, port, state, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n",
					oc.AuthCodeURL(state, oauth2.AccessTypeOffline))
			})
			if err != nil {
				return err
			}

			tok, err := oc.Exchange(ctx, code)
			if err != nil {
				return fmt.Errorf("token exchange: %w", err)
			}
			if err := gsheet.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "8085", "local port for the OAuth redirect")
	cmd.Flags().StringVar(&tokenFile, "token-file", "token.json", "where to save the token")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for consent")
	return cmd
}

// awaitAuthCode serves the redirect endpoint until one callback with the
// expected state arrives or ctx ends.
func awaitAuthCode(ctx context.Context, port, state string, ready func()) (string, error) {
	ln, err := net.Listen("tcp", "localhost:"+port)
	if err != nil {
		return "", fmt.Errorf("listen for redirect: %w", err)
	}

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		default:
			res.code = q.Get("code")
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.FromContext(ctx).Error("OAuth redirect server failed", applog.FieldError, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	ready()

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("authorization not completed: %w", ctx.Err())
	}
}
