package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/taler-client/internal/challenge"
	"github.com/and161185/taler-client/internal/config"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/model"
	"github.com/and161185/taler-client/internal/service"
	"github.com/and161185/taler-client/internal/transport"
)

func httpClient(cfg config.Config) transport.Doer {
	return &http.Client{Timeout: cfg.HTTPTimeout}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func readJSON(in io.Reader, path string, dst any) error {
	if path == "" {
		return errors.New("need -file")
	}
	b, err := readAll(in, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ---- privileged operations ----

func (a *app) createInstance(ctx context.Context, args []string) error {
	fs := newFlags("create-instance")
	file := fs.String("file", "", "instance config (JSON, - for stdin)")
	prompt := fs.Bool("prompt", false, "read TANs from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var cfg model.InstanceConfig
	if err := readJSON(a.in, *file, &cfg); err != nil {
		return err
	}
	return a.privileged(ctx, "create-instance", *prompt, func(ctx context.Context) (*challenge.Flow, error) {
		m, err := a.merchantClient(ctx)
		if err != nil {
			return nil, err
		}
		return m.CreateInstance(ctx, cfg)
	})
}

func (a *app) updateInstance(ctx context.Context, args []string) error {
	fs := newFlags("update-instance")
	id := fs.String("id", "", "instance id")
	file := fs.String("file", "", "instance settings (JSON, - for stdin)")
	prompt := fs.Bool("prompt", false, "read TANs from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var cfg model.InstanceReconfig
	if err := readJSON(a.in, *file, &cfg); err != nil {
		return err
	}
	return a.privileged(ctx, "update-instance", *prompt, func(ctx context.Context) (*challenge.Flow, error) {
		m, err := a.merchantClient(ctx)
		if err != nil {
			return nil, err
		}
		return m.UpdateInstance(ctx, *id, cfg)
	})
}

func (a *app) deleteInstance(ctx context.Context, args []string) error {
	fs := newFlags("delete-instance")
	id := fs.String("id", "", "instance id")
	purge := fs.Bool("purge", false, "remove all data of the instance")
	prompt := fs.Bool("prompt", false, "read TANs from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.privileged(ctx, "delete-instance", *prompt, func(ctx context.Context) (*challenge.Flow, error) {
		m, err := a.merchantClient(ctx)
		if err != nil {
			return nil, err
		}
		return m.DeleteInstance(ctx, *id, *purge)
	})
}

func (a *app) changeAuth(ctx context.Context, args []string) error {
	fs := newFlags("change-auth")
	id := fs.String("id", "", "instance id")
	password := fs.String("password", "", "new password (token auth)")
	external := fs.Bool("external", false, "use external authentication")
	prompt := fs.Bool("prompt", false, "read TANs from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *external == (*password != "") {
		return errors.New("need exactly one of -password and -external")
	}
	auth := model.InstanceAuthConfig{Method: model.AuthMethodToken, Password: *password}
	if *external {
		auth = model.InstanceAuthConfig{Method: model.AuthMethodExternal}
	}
	return a.privileged(ctx, "change-auth", *prompt, func(ctx context.Context) (*challenge.Flow, error) {
		m, err := a.merchantClient(ctx)
		if err != nil {
			return nil, err
		}
		return m.ChangeAuth(ctx, *id, auth)
	})
}

// privileged runs start. With prompt the challenges are solved right away,
// otherwise a challenged operation is stored for the challenge commands.
func (a *app) privileged(ctx context.Context, op string, prompt bool, start service.StartFunc) error {
	if prompt {
		m, err := a.merchantClient(ctx)
		if err != nil {
			return err
		}
		svc := service.NewOperationService(m, service.SolverFunc(a.promptTan), service.WithLogger(a.log))
		if err := svc.Run(ctx, op, start); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "ok")
		return nil
	}

	f, err := start(ctx)
	if err != nil {
		return err
	}
	return a.settle(f)
}

// settle prints "ok" for a finished operation, or stores f and lists its
// challenges.
func (a *app) settle(f *challenge.Flow) error {
	p, err := a.pendingStore()
	if err != nil {
		return err
	}
	if f == nil {
		if err := p.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "ok")
		return nil
	}
	if err := p.Save(a.cfg.MerchantURL, f.Snapshot()); err != nil {
		return err
	}
	a.printFlow(f)
	return nil
}

func (a *app) promptTan(_ context.Context, ch model.Challenge, timing model.ChallengeRequestResponse) (string, error) {
	fmt.Fprintf(a.out, "TAN sent via %s to %s (valid until %s): ", ch.TanChannel, ch.TanInfo, timing.SolveExpiration)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read tan: %w", err)
	}
	tan := strings.TrimSpace(line)
	if tan == "" {
		return "", service.ErrSkipChallenge
	}
	return tan, nil
}

type flowView struct {
	Operation  string            `json:"operation"`
	State      string            `json:"state"`
	CombiAnd   bool              `json:"combi_and"`
	Challenges []challengeView   `json:"challenges"`
	Evidence   string            `json:"evidence,omitempty"`
	Timing     map[string]string `json:"earliest_retransmission,omitempty"`
}

type challengeView struct {
	ID      string           `json:"id"`
	Channel model.TanChannel `json:"channel"`
	Info    string           `json:"info,omitempty"`
	State   string           `json:"state"`
}

func (a *app) printFlow(f *challenge.Flow) {
	env := f.Envelope()
	v := flowView{
		Operation: env.Method + " " + env.Path,
		State:     f.State().String(),
		CombiAnd:  f.Challenges().CombiAnd,
		Evidence:  f.Evidence(),
	}
	for _, ch := range f.Challenges().Challenges {
		st, _ := f.ChallengeState(ch.ChallengeID)
		v.Challenges = append(v.Challenges, challengeView{ID: ch.ChallengeID, Channel: ch.TanChannel, Info: ch.TanInfo, State: st.String()})
		if t, ok := f.Timing(ch.ChallengeID); ok {
			if v.Timing == nil {
				v.Timing = map[string]string{}
			}
			v.Timing[ch.ChallengeID] = t.EarliestRetransmission.String()
		}
	}
	a.printJSON(v)
}

// ---- challenge ----

func (a *app) resume(ctx context.Context) (*challenge.Flow, error) {
	p, err := a.pendingStore()
	if err != nil {
		return nil, err
	}
	snap, err := p.Load(a.cfg.MerchantURL)
	if err != nil {
		return nil, err
	}
	m, err := a.merchantClient(ctx)
	if err != nil {
		return nil, err
	}
	return m.Resume(ctx, snap)
}

func (a *app) challenge(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("need challenge show|request|confirm|retry")
	}
	fs := newFlags("challenge " + args[0])
	id := fs.String("id", "", "challenge id")
	tan := fs.String("tan", "", "TAN")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	f, err := a.resume(ctx)
	if err != nil {
		return err
	}
	p, err := a.pendingStore()
	if err != nil {
		return err
	}

	switch args[0] {
	case "show":
		a.printFlow(f)
		return nil
	case "request":
		timing, err := f.Request(ctx, *id)
		if err != nil {
			return err
		}
		if err := p.Save(a.cfg.MerchantURL, f.Snapshot()); err != nil {
			return err
		}
		a.printJSON(timing)
		return nil
	case "confirm":
		if *tan == "" {
			return errors.New("need -tan")
		}
		if err := f.Confirm(ctx, *id, *tan); err != nil {
			return err
		}
		if err := p.Save(a.cfg.MerchantURL, f.Snapshot()); err != nil {
			return err
		}
		a.printFlow(f)
		return nil
	case "retry":
		m, err := a.merchantClient(ctx)
		if err != nil {
			return err
		}
		next, err := m.Complete(ctx, f)
		if err != nil {
			// Once the resend reached the backend the operation is spent,
			// whatever it answered.
			if f.State() == challenge.Retried || errors.Is(err, errs.ErrAlreadyRetried) {
				if cerr := p.Clear(); cerr != nil {
					a.log.Warn("clear pending operation", zap.Error(cerr))
				}
			}
			return err
		}
		return a.settle(next)
	default:
		return fmt.Errorf("unknown challenge command %q", args[0])
	}
}

// ---- orders ----

func (a *app) order(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("need order create|get")
	}
	fs := newFlags("order " + args[0])
	file := fs.String("file", "", "order request (JSON, - for stdin)")
	id := fs.String("id", "", "order id")
	skip := fs.Bool("skip-validation", false, "accept contract terms that fail semantic checks")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *skip {
		a.decode.SkipValidation = true
	}
	m, err := a.merchantClient(ctx)
	if err != nil {
		return err
	}

	switch args[0] {
	case "create":
		var req model.PostOrderRequest
		if err := readJSON(a.in, *file, &req); err != nil {
			return err
		}
		resp, err := m.CreateOrder(ctx, req)
		if err != nil {
			return err
		}
		a.printJSON(resp)
		return nil
	case "get":
		st, err := m.GetOrder(ctx, *id)
		if err != nil {
			return err
		}
		a.printJSON(orderView(st))
		return nil
	default:
		return fmt.Errorf("unknown order command %q", args[0])
	}
}

func orderView(st model.OrderStatusResponse) map[string]any {
	v := map[string]any{"order_status": st.OrderStatus()}
	switch o := st.(type) {
	case model.UnpaidOrder:
		v["summary"] = o.Summary
		v["taler_pay_uri"] = o.TalerPayURI
		if o.TotalAmount != nil {
			v["total_amount"] = o.TotalAmount.String()
		}
	case model.ClaimedOrder:
		v["contract_version"] = o.ContractTerms.Version()
		v["summary"] = o.ContractTerms.Common().Summary
	case model.PaidOrder:
		v["contract_version"] = o.ContractTerms.Version()
		v["summary"] = o.ContractTerms.Common().Summary
		v["refunded"] = o.Refunded
		v["wired"] = o.Wired
	}
	return v
}

// ---- exchange ----

func (a *app) keys(ctx context.Context) error {
	c, err := a.exchangeClient(ctx)
	if err != nil {
		return err
	}
	keys, err := c.GetKeys(ctx)
	if err != nil {
		return err
	}
	type denom struct {
		Value  string `json:"value"`
		Cipher string `json:"cipher"`
		Age    bool   `json:"age_restricted"`
	}
	type account struct {
		Payto  string `json:"payto_uri"`
		Credit int    `json:"credit_restrictions"`
		Debit  int    `json:"debit_restrictions"`
	}
	out := struct {
		Currency      string    `json:"currency"`
		Version       string    `json:"version"`
		Denominations []denom   `json:"denominations"`
		Accounts      []account `json:"accounts"`
	}{Currency: keys.Currency, Version: keys.Version}
	for _, d := range keys.Denominations {
		out.Denominations = append(out.Denominations, denom{Value: d.Value.String(), Cipher: string(d.DenomPub.Cipher()), Age: d.AgeRestricted()})
	}
	for _, acc := range keys.Accounts {
		out.Accounts = append(out.Accounts, account{Payto: acc.PaytoURI, Credit: len(acc.CreditRestrictions), Debit: len(acc.DebitRestrictions)})
	}
	a.printJSON(out)
	return nil
}
