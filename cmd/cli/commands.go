package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/lyceum-portal/internal/crypto"
	"github.com/and161185/lyceum-portal/internal/initdata"
	"github.com/and161185/lyceum-portal/internal/model"
)

// readSecret returns the flag value, then $ADMIN_SECRET_KEY, then a line read from in.
func readSecret(flagVal string, in io.Reader, prompt io.Writer) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if v := os.Getenv("ADMIN_SECRET_KEY"); v != "" {
		return v, nil
	}
	fmt.Fprint(prompt, "Enter ADMIN_SECRET_KEY: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", errors.New("ADMIN_SECRET_KEY is required")
	}
	return secret, nil
}

type adminCreated struct {
	Success bool `json:"success"`
	Admin   struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"admin"`
}

// createAdmin registers an admin panel login. An empty fullName defaults to the username.
func createAdmin(ctx context.Context, c *apiClient, secret, username, password, fullName string, w io.Writer) error {
	if fullName == "" {
		fullName = username
	}
	var out adminCreated
	err := c.call(ctx, http.MethodPost, "/create-admin", map[string]any{
		"username":   username,
		"password":   password,
		"full_name":  fullName,
		"secret_key": secret,
	}, "", &out)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "admin created")
	fmt.Fprintf(w, "  id:       %s\n  username: %s\n", out.Admin.ID, out.Admin.Username)
	return nil
}

type adminGranted struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	UserID     string `json:"user_id"`
	TelegramID int64  `json:"telegram_id"`
}

// setAdmin grants the admin role to a Telegram user.
func setAdmin(ctx context.Context, c *apiClient, secret string, telegramID int64, w io.Writer) error {
	var out adminGranted
	err := c.call(ctx, http.MethodPost, "/set-admin", map[string]any{
		"telegram_id": telegramID,
		"secret_key":  secret,
	}, "", &out)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out.Message)
	fmt.Fprintf(w, "  user_id:     %s\n  telegram_id: %d\n", out.UserID, out.TelegramID)
	return nil
}

type loginReply struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Admin     struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"admin"`
}

// login obtains an admin session and stores it in the config dir.
func login(ctx context.Context, c *apiClient, username, password string, w io.Writer) error {
	var out loginReply
	if err := c.call(ctx, http.MethodPost, "/admin-login", map[string]string{
		"username": username,
		"password": password,
	}, "", &out); err != nil {
		return err
	}
	if out.ExpiresAt.IsZero() {
		out.ExpiresAt = time.Now().Add(24 * time.Hour)
	}
	if err := saveToken(tokenFile{AccessToken: out.Token, Username: out.Admin.Username, ExpiresAt: out.ExpiresAt}); err != nil {
		return err
	}
	fmt.Fprintf(w, "ok, session valid until %s\n", out.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}

// whoami re-validates the stored session on the server.
func whoami(ctx context.Context, c *apiClient, w io.Writer) error {
	tf, err := loadToken()
	if err != nil {
		return err
	}
	var out map[string]any
	if err := c.call(ctx, http.MethodGet, "/admin-session", nil, tf.AccessToken, &out); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized {
			_ = clearToken()
		}
		return err
	}
	printJSON(w, out)
	return nil
}

// signInitData builds a Mini App initData string signed with botToken, for local testing.
func signInitData(botToken string, p model.TelegramPrincipal, authDate time.Time) (string, error) {
	if botToken == "" {
		return "", errors.New("bot token is required (-bot-token or TELEGRAM_BOT_TOKEN)")
	}
	if p.ID == 0 {
		return "", errors.New("telegram id is required")
	}
	user, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	qid, err := crypto.RandHex(8)
	if err != nil {
		return "", err
	}
	v := url.Values{}
	v.Set("query_id", qid)
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	v.Set("user", string(user))
	return initdata.Sign(v, botToken), nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
