// Command linkctl drives a linksnap server from the shell.
//
//	linkctl [-server URL] [-token TOKEN] <command> [flags]
//
// Commands: register, login, create, delete, get, links, upload.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sundayezeilo/linksnap/internal/client"
	"github.com/sundayezeilo/linksnap/internal/shortener"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "linkctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("linkctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	server := global.String("server", envOr("LINKSNAP_URL", "http://localhost:8080"), "server base URL")
	token := global.String("token", os.Getenv("LINKSNAP_TOKEN"), "session token from login")
	verbose := global.Bool("v", false, "log retries to stderr")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: linkctl [-server URL] [-token TOKEN] <register|login|create|delete|get|links|upload> [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return errUsage
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	c, err := client.New(*server, client.WithToken(*token), client.WithLogger(logger))
	if err != nil {
		return err
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var out any
	switch cmd {
	case "register":
		email := fs.String("email", "", "email address")
		username := fs.String("username", "", "username (3+ characters)")
		password := fs.String("password", "", "password (6+ characters)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		out, err = c.Register(ctx, *email, *username, *password)

	case "login":
		identifier := fs.String("user", "", "email or username")
		password := fs.String("password", "", "password")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		out, err = c.Login(ctx, *identifier, *password)

	case "create":
		userID := fs.String("user-id", "", "owner user id")
		slug := fs.String("slug", "", "custom short code")
		expiry := fs.String("expires", "", "expiry date, YYYY-MM-DD or RFC 3339")
		driveID := fs.String("drive-id", "", "attach an uploaded file")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if fs.NArg() != 1 {
			return usageErr(fs, "create [flags] <url>")
		}
		var expiresAt *time.Time
		if expiresAt, err = shortener.ParseExpiry(*expiry); err != nil {
			return err
		}
		out, err = c.CreateLink(ctx, client.CreateLinkParams{
			UserID:      *userID,
			OriginalURL: fs.Arg(0),
			CustomSlug:  *slug,
			ExpiresAt:   expiresAt,
			DriveID:     *driveID,
		})

	case "delete":
		userID := fs.String("user-id", "", "owner user id")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if fs.NArg() != 1 {
			return usageErr(fs, "delete -user-id ID <code>")
		}
		out, err = c.DeleteLink(ctx, fs.Arg(0), *userID)

	case "get":
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if fs.NArg() != 1 {
			return usageErr(fs, "get <code>")
		}
		out, err = c.GetLink(ctx, fs.Arg(0))
		if client.IsExpired(err) {
			return fmt.Errorf("%s: link has expired", fs.Arg(0))
		}

	case "links":
		userID := fs.String("user-id", "", "owner user id")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		out, err = c.UserLinks(ctx, *userID)

	case "upload":
		contentType := fs.String("type", "", "content type (guessed from the extension by default)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if fs.NArg() != 1 {
			return usageErr(fs, "upload [-type TYPE] <file>")
		}
		out, err = upload(ctx, c, fs.Arg(0), *contentType, stderr)

	default:
		global.Usage()
		return errUsage
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func upload(ctx context.Context, c *client.Client, path, contentType string, stderr io.Writer) (client.UploadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.UploadResult{}, err
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}

	res, err := c.Upload(ctx, filepath.Base(path), contentType, data, func(f float64) {
		fmt.Fprintf(stderr, "\ruploading %3.0f%%", f*100)
	})
	fmt.Fprintln(stderr)
	return res, err
}

func usageErr(fs *flag.FlagSet, usage string) error {
	fmt.Fprintln(fs.Output(), "usage: linkctl", usage)
	fs.PrintDefaults()
	return errUsage
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
