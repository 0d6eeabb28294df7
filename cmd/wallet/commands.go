package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/session"
	"healthpay-wallet/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

var errNotLoggedIn = errors.New("not logged in, run: wallet login -u <username> -p <password>")

// app is the presentation glue over the session manager and wallet service.
type app struct {
	mgr    *session.Manager
	wallet *wallet.Service
	out    io.Writer
}

type command struct {
	usage string
	auth  bool
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":       {usage: "login -u <username> -p <password>", run: cmdLogin},
	"logout":      {usage: "logout", run: cmdLogout},
	"status":      {usage: "status", run: cmdStatus},
	"balance":     {usage: "balance", auth: true, run: cmdBalance},
	"send":        {usage: "send --amount <n> --to <phone> [--note <text>] [--pin <pin>]", auth: true, run: cmdSend},
	"request":     {usage: "request --amount <n> [--note <text>]", auth: true, run: cmdRequest},
	"history":     {usage: "history [--page <n>] [--limit <n>]", auth: true, run: cmdHistory},
	"recent":      {usage: "recent [--limit <n>]", auth: true, run: cmdRecent},
	"tx":          {usage: "tx <id>", auth: true, run: cmdTransaction},
	"qr-generate": {usage: "qr-generate [--amount <n>] [--note <text>] [--out <file.png>]", auth: true, run: cmdQRGenerate},
	"qr-pay":      {usage: "qr-pay <payload> --pin <pin>", auth: true, run: cmdQRPay},
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: wallet [--config <path>] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

// dispatch runs one command. Authenticated commands refresh a token that is
// about to expire before they start.
func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage(a.out)
		return errors.New("missing command")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(a.out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	if cmd.auth {
		if !a.mgr.IsAuthenticated(ctx) {
			return errNotLoggedIn
		}
		if apiErr := a.mgr.RefreshIfNeeded(ctx); apiErr != nil {
			return apiErr
		}
	}
	return cmd.run(ctx, a, args[1:])
}

func newFlags(name string, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errors.New("--amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login", a.out)
	username := fs.StringP("username", "u", "", "username or phone")
	password := fs.StringP("password", "p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := a.mgr.Login(ctx, *username, *password)
	if !res.Ok() {
		return res.Err()
	}

	auth := res.Value()
	name := *username
	if auth.User != nil && auth.User.FullName != "" {
		name = auth.User.FullName
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", name)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.mgr.Logout(ctx); err != nil {
		return err
	}
	a.wallet.OnLogout()
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func cmdStatus(ctx context.Context, a *app, _ []string) error {
	if !a.mgr.IsAuthenticated(ctx) {
		fmt.Fprintln(a.out, "Status: logged out")
		return nil
	}
	fmt.Fprintln(a.out, "Status: logged in")
	if a.mgr.NeedsRefresh(ctx) {
		fmt.Fprintln(a.out, "Access token expires soon")
	}
	return nil
}

func cmdBalance(ctx context.Context, a *app, _ []string) error {
	if apiErr := a.wallet.RefreshBalance(ctx); apiErr != nil {
		return apiErr
	}
	b := a.wallet.Balance().Get()
	if b == nil {
		return errors.New("no balance returned")
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Available:\t%s\n", b.Formatted())
	fmt.Fprintf(tw, "Pending:\t%s %s\n", b.Pending.StringFixed(2), b.Currency)
	fmt.Fprintf(tw, "Total:\t%s %s\n", b.Total().StringFixed(2), b.Currency)
	return tw.Flush()
}

func cmdSend(ctx context.Context, a *app, args []string) error {
	fs := newFlags("send", a.out)
	rawAmount := fs.String("amount", "", "amount to send")
	to := fs.String("to", "", "recipient phone")
	note := fs.String("note", "", "description")
	pin := fs.String("pin", "", "wallet PIN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := parseAmount(*rawAmount)
	if err != nil {
		return err
	}

	result := a.wallet.SendPayment(ctx, amount, *to, *note, *pin)
	return printPayment(a.out, result)
}

func cmdRequest(ctx context.Context, a *app, args []string) error {
	fs := newFlags("request", a.out)
	rawAmount := fs.String("amount", "", "amount to request")
	note := fs.String("note", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := parseAmount(*rawAmount)
	if err != nil {
		return err
	}

	res := a.wallet.RequestPayment(ctx, amount, *note)
	if !res.Ok() {
		return res.Err()
	}
	link := res.Value()
	fmt.Fprintf(a.out, "Payment link: %s\n", link.Link)
	fmt.Fprintf(a.out, "Amount: %s %s\n", link.Amount.StringFixed(2), link.Currency)
	fmt.Fprintf(a.out, "Expires: %s\n", link.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlags("history", a.out)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", wallet.DefaultPageSize, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := a.wallet.LoadTransactionHistory(ctx, *page, *limit)
	if !res.Ok() {
		return res.Err()
	}
	p := res.Value()
	if err := printTransactions(a.out, p.Transactions); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Page %d, %d total", p.Page, p.Total)
	if p.HasMore {
		fmt.Fprintf(a.out, ", next: wallet history --page %d", p.Page+1)
	}
	fmt.Fprintln(a.out)
	return nil
}

func cmdRecent(ctx context.Context, a *app, args []string) error {
	fs := newFlags("recent", a.out)
	limit := fs.Int("limit", wallet.RecentLimit, "number of transactions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := a.wallet.LoadRecentTransactions(ctx, *limit)
	if !res.Ok() {
		return res.Err()
	}
	return printTransactions(a.out, a.wallet.RecentTransactions().Get())
}

func cmdTransaction(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: wallet tx <id>")
	}
	res := a.wallet.TransactionDetail(ctx, args[0])
	if !res.Ok() {
		return res.Err()
	}
	tx := res.Value()
	return printTransaction(a.out, &tx)
}

func cmdQRGenerate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("qr-generate", a.out)
	rawAmount := fs.String("amount", "", "fixed amount (optional)")
	note := fs.String("note", "", "description")
	outPath := fs.String("out", "", "write the QR image to this PNG file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var amount *decimal.Decimal
	if *rawAmount != "" {
		v, err := parseAmount(*rawAmount)
		if err != nil {
			return err
		}
		amount = &v
	}

	res := a.wallet.GenerateReceiveQR(ctx, amount, *note)
	if !res.Ok() {
		return res.Err()
	}
	qr := res.Value()
	fmt.Fprintf(a.out, "Payment ID: %s\n", qr.PaymentID)
	fmt.Fprintf(a.out, "QR data: %s\n", qr.QRData)
	fmt.Fprintf(a.out, "Expires: %s\n", qr.ExpiresAt.Local().Format(time.RFC1123))

	if *outPath != "" {
		png, err := base64.StdEncoding.DecodeString(qr.QRImage)
		if err != nil {
			return fmt.Errorf("decode QR image: %w", err)
		}
		if err := os.WriteFile(*outPath, png, 0o644); err != nil {
			return fmt.Errorf("write QR image: %w", err)
		}
		fmt.Fprintf(a.out, "QR image written to %s\n", *outPath)
	}
	return nil
}

func cmdQRPay(ctx context.Context, a *app, args []string) error {
	fs := newFlags("qr-pay", a.out)
	pin := fs.String("pin", "", "wallet PIN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: wallet qr-pay <payload> --pin <pin>")
	}

	result := a.wallet.ProcessQRPayment(ctx, fs.Arg(0), *pin)
	return printPayment(a.out, result)
}

func printPayment(w io.Writer, r *domain.PaymentResult) error {
	if !r.Success {
		return errors.New(r.ErrorMessage)
	}
	fmt.Fprintln(w, "Payment sent")
	return printTransaction(w, r.Transaction)
}

func printTransaction(w io.Writer, t *domain.Transaction) error {
	if t == nil {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", t.ID)
	fmt.Fprintf(tw, "Type:\t%s\n", t.Type)
	fmt.Fprintf(tw, "Status:\t%s\n", t.Status)
	fmt.Fprintf(tw, "Amount:\t%s\n", t.FormattedAmount())
	if cp := t.CounterpartyName(); cp != "" {
		fmt.Fprintf(tw, "Counterparty:\t%s\n", cp)
	}
	if t.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", t.Description)
	}
	if t.ReferenceNumber != "" {
		fmt.Fprintf(tw, "Reference:\t%s\n", t.ReferenceNumber)
	}
	fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.Local().Format(time.RFC1123))
	return tw.Flush()
}

func printTransactions(w io.Writer, txs []domain.Transaction) error {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tCOUNTERPARTY\tSTATUS")
	for i := range txs {
		t := &txs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
			t.Type,
			t.FormattedAmount(),
			t.CounterpartyName(),
			t.Status,
		)
	}
	return tw.Flush()
}
