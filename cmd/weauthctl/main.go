// weauthctl is the operations CLI: health checks, offline authorization
// URL construction and offline decryption of signed Mini Program payloads.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weauth/weauth/internal/oauth/wechat"
	"github.com/weauth/weauth/internal/security/wxcrypt"
)

func main() {
	root := &cobra.Command{
		Use:           "weauthctl",
		Short:         "Operations CLI for the weauth service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(pingCmd(), authURLCmd(), decryptCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func pingCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check the service health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(strings.TrimRight(addr, "/") + "/healthz")
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			fmt.Println(strings.TrimSpace(string(body)))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the service")
	return cmd
}

func authURLCmd() *cobra.Command {
	var (
		appID       string
		redirectURL string
		scope       string
		state       string
	)

	cmd := &cobra.Command{
		Use:   "authurl",
		Short: "Build the provider authorization URL offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if appID == "" {
				return fmt.Errorf("--app-id is required")
			}
			client := wechat.New(wechat.Config{
				AppID:           appID,
				RedirectURL:     redirectURL,
				SendRedirectURI: redirectURL != "",
			}, nil)

			var scopes []string
			for _, s := range strings.Split(scope, ",") {
				if s = strings.TrimSpace(s); s != "" {
					scopes = append(scopes, s)
				}
			}

			u, err := client.AuthURL(state, scopes)
			if err != nil {
				return err
			}
			fmt.Println(u)
			return nil
		},
	}

	cmd.Flags().StringVar(&appID, "app-id", "", "provider application id")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "callback URL to send as redirect_uri")
	cmd.Flags().StringVar(&scope, "scope", "snsapi_userinfo", "comma-separated scopes")
	cmd.Flags().StringVar(&state, "state", "", "opaque state value")
	return cmd
}

func decryptCmd() *cobra.Command {
	var (
		sessionKey string
		iv         string
		data       string
		rawData    string
		signature  string
	)

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Verify and decrypt a signed Mini Program payload offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionKey == "" || iv == "" || data == "" {
				return fmt.Errorf("--session-key, --iv and --data are required")
			}

			if signature != "" {
				if err := wxcrypt.VerifySignature(rawData, sessionKey, signature); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "signature: ok")
			}

			payload, err := wxcrypt.DecryptUserData(sessionKey, iv, data)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}

	cmd.Flags().StringVar(&sessionKey, "session-key", "", "base64 session key")
	cmd.Flags().StringVar(&iv, "iv", "", "base64 initialization vector")
	cmd.Flags().StringVar(&data, "data", "", "base64 encrypted payload")
	cmd.Flags().StringVar(&rawData, "raw-data", "", "raw data string the signature covers")
	cmd.Flags().StringVar(&signature, "signature", "", "expected hex signature (optional)")
	return cmd
}
