package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/sbadash/internal/auth"
	"github.com/hitoshi/sbadash/internal/chat"
	"github.com/hitoshi/sbadash/internal/connector"
	"github.com/hitoshi/sbadash/internal/document"
	"github.com/hitoshi/sbadash/internal/employee"
	"github.com/hitoshi/sbadash/internal/model"
)

// defaultConnectWait はOAuthの戻りを待つ既定の時間。
const defaultConnectWait = 5 * time.Minute

type runFunc func(cmd *cobra.Command, args []string, d *Deps) error

// cli はサブコマンド間で共有する出力先を保持する。
type cli struct {
	p *printer
}

// NewRootCmd はルートコマンドと全サブコマンドを生成する。
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{p: newPrinter(out, errOut)}

	cmd := &cobra.Command{
		Use:           "sbadash",
		Short:         "Command-line client for the small-business assistant dashboard",
		Long:          "sbadash drives the assistant dashboard backend: accounts, employees, documents, plans, data sources and the AI chat panel.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.AddCommand(c.newSignupCmd())
	cmd.AddCommand(c.newLoginCmd())
	cmd.AddCommand(c.newLogoutCmd())
	cmd.AddCommand(c.newWhoamiCmd())
	cmd.AddCommand(c.newEmployeesCmd())
	cmd.AddCommand(c.newDocumentsCmd())
	cmd.AddCommand(c.newPlansCmd())
	cmd.AddCommand(c.newConnectorsCmd())
	cmd.AddCommand(c.newChatCmd())

	return cmd
}

// Execute はコマンドを実行し、失敗した場合はエラー文言を表示してから返す。
func Execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if err != nil {
		p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
		p.error("%s", p.text(err.Error()))
	}
	return err
}

// withDeps は設定の読み込みと依存関係の構築を行ってからfnを呼ぶ。
func (c *cli) withDeps(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := Init(c.p.errOut)
		if err != nil {
			return err
		}
		d, err := NewDeps(cfg, log, printNavigator{p: c.p})
		if err != nil {
			return err
		}
		defer func() {
			if err := d.Close(); err != nil {
				log.Warn("failed to release resources", slog.String("error", err.Error()))
			}
		}()
		return fn(cmd, args, d)
	}
}

// authed はログイン済みの場合だけfnを呼ぶ。
func (c *cli) authed(fn runFunc) func(*cobra.Command, []string) error {
	return c.withDeps(func(cmd *cobra.Command, args []string, d *Deps) error {
		if _, err := d.Auth.RequireAuthenticated(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd, args, d)
	})
}

func (c *cli) newSignupCmd() *cobra.Command {
	var form auth.SignupForm
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: c.withDeps(func(cmd *cobra.Command, _ []string, d *Deps) error {
			identity, err := d.Auth.Signup(cmd.Context(), form)
			if err != nil {
				return err
			}
			c.p.success("Account created. Signed in as %s <%s>.", c.p.text(identity.FullName), c.p.text(identity.Email))
			return nil
		}),
	}
	cmd.Flags().StringVar(&form.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&form.Email, "email", "", "email address")
	cmd.Flags().StringVar(&form.Password, "password", "", "password (at least 8 characters)")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "password again")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("confirm-password")
	return cmd
}

func (c *cli) newLoginCmd() *cobra.Command {
	var form auth.LoginForm
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: c.withDeps(func(cmd *cobra.Command, _ []string, d *Deps) error {
			identity, err := d.Auth.Login(cmd.Context(), form)
			if err != nil {
				return err
			}
			c.p.success("Welcome back, %s.", c.p.text(displayName(identity)))
			return nil
		}),
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "email address")
	cmd.Flags().StringVar(&form.Password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: c.withDeps(func(cmd *cobra.Command, _ []string, d *Deps) error {
			d.Auth.Logout(cmd.Context())
			c.p.success("Signed out.")
			return nil
		}),
	}
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: c.authed(func(cmd *cobra.Command, _ []string, d *Deps) error {
			identity := d.Auth.CurrentUser(cmd.Context())
			c.p.linef("%s <%s>", c.p.text(displayName(identity)), c.p.text(identity.Email))
			c.p.linef("id: %s", c.p.text(identity.ID))
			return nil
		}),
	}
}

func (c *cli) newEmployeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employees",
		Short: "Manage employees",
	}

	var fields employee.Fields
	var role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an employee",
		Args:  cobra.NoArgs,
		RunE: c.authed(func(cmd *cobra.Command, _ []string, d *Deps) error {
			if err := d.Employees.SelectRole(role); err != nil {
				return err
			}
			d.Employees.SetFields(fields)
			emp, err := d.Employees.Submit(cmd.Context())
			if err != nil {
				return err
			}
			c.p.success("%s", d.Employees.Feedback())
			c.p.linef("%s <%s> as %s (id %s)", c.p.text(emp.FullName), c.p.text(emp.Email), c.p.text(emp.Role), c.p.text(emp.ID))
			return nil
		}),
	}
	add.Flags().StringVar(&fields.FullName, "name", "", "full name")
	add.Flags().StringVar(&fields.Email, "email", "", "email address")
	add.Flags().StringVar(&fields.Phone, "phone", "", "phone number")
	add.Flags().StringVar(&fields.TemporaryPassword, "temp-password", "", "temporary password")
	add.Flags().StringVar(&role, "role", employee.DefaultRole, "role: admin, chef-service or employee")
	_ = add.MarkFlagRequired("email")

	roles := &cobra.Command{
		Use:   "roles",
		Short: "List the roles that can be assigned",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, r := range employee.Roles() {
				c.p.linef("%-13s %s", r.ID, r.Description)
			}
			return nil
		},
	}

	cmd.AddCommand(add, roles)
	return cmd
}

func (c *cli) newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Upload and list documents",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recently uploaded documents",
		Args:  cobra.NoArgs,
		RunE: c.authed(func(cmd *cobra.Command, _ []string, d *Deps) error {
			d.Documents.LoadRecent(cmd.Context())
			c.printDocuments(d.Documents.Recent())
			return nil
		}),
	}

	var fields document.Fields
	var category string
	var checkLink bool
	upload := &cobra.Command{
		Use:   "upload",
		Short: "Register a document",
		Args:  cobra.NoArgs,
		RunE: c.authed(func(cmd *cobra.Command, _ []string, d *Deps) error {
			if category != "" && !d.Documents.AddCategory(category) {
				if err := d.Documents.SelectCategory(strings.TrimSpace(category)); err != nil {
					return err
				}
			}
			d.Documents.SetCheckReachable(checkLink)
			d.Documents.SetFields(fields)
			if _, err := d.Documents.Upload(cmd.Context()); err != nil {
				return err
			}
			c.p.success("%s", d.Documents.Feedback())
			c.printDocuments(d.Documents.Recent())
			return nil
		}),
	}
	upload.Flags().StringVar(&fields.Title, "title", "", "document title")
	upload.Flags().StringVar(&fields.Filename, "filename", "", "file name (defaults to <title>.pdf)")
	upload.Flags().StringVar(&fields.CloudLink, "link", "", "optional cloud link (http or https)")
	upload.Flags().StringVar(&category, "category", "", "category; a new one is created when unknown")
	upload.Flags().BoolVar(&checkLink, "check-link", false, "verify the cloud link is reachable before uploading")

	categories := &cobra.Command{
		Use:   "categories",
		Short: "List the built-in categories",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, name := range document.DefaultCategories() {
				c.p.linef("%s", name)
			}
			return nil
		},
	}

	cmd.AddCommand(list, upload, categories)
	return cmd
}

func (c *cli) printDocuments(docs []model.Document) {
	if len(docs) == 0 {
		c.p.linef("No documents uploaded yet.")
		return
	}
	for _, doc := range docs {
		line := fmt.Sprintf("%s [%s] %s", c.p.text(doc.Title), c.p.text(doc.Category), c.p.text(doc.Filename))
		if doc.CloudLink != "" {
			line += " " + c.p.text(doc.CloudLink)
		}
		c.p.linef("%s", line)
	}
}

func (c *cli) newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		Args:  cobra.NoArgs,
		RunE: c.withDeps(func(cmd *cobra.Command, _ []string, d *Deps) error {
			plans, err := d.Plans.ListPlans(cmd.Context())
			if err != nil {
				return err
			}
			for i, v := range plans {
				if i > 0 {
					c.p.linef("")
				}
				title := c.p.text(v.Plan.Name)
				if v.Badge != "" {
					title += " (" + v.Badge + ")"
				}
				c.p.linef("%s  %s%s", title, c.p.text(v.Plan.Price), c.p.text(v.Plan.Period))
				if v.Plan.Description != "" {
					c.p.linef("  %s", c.p.text(v.Plan.Description))
				}
				for _, f := range v.Plan.Features {
					c.p.linef("  - %s", c.p.text(f))
				}
				c.p.linef("  [%s]", v.ActionLabel)
			}
			return nil
		}),
	}
}

func (c *cli) newConnectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connectors",
		Aliases: []string{"data-sources"},
		Short:   "Connect and disconnect data sources",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show every data source and whether it is connected",
		Args:  cobra.NoArgs,
		RunE: c.authed(func(cmd *cobra.Command, _ []string, d *Deps) error {
			if err := d.Connectors.Load(cmd.Context()); err != nil {
				c.p.warning("%s", c.p.text(d.Connectors.Error()))
			}
			c.printConnectors(d.Connectors)
			return nil
		}),
	}

	var wait time.Duration
	connect := &cobra.Command{
		Use:   "connect <provider>",
		Short: "Authorize a data source in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: c.authed(func(cmd *cobra.Command, args []string, d *Deps) error {
			provider := args[0]
			if !inCatalog(provider) {
				return model.NewValidationError(fmt.Sprintf("Unknown data source %q.", provider))
			}
			if wait <= 0 {
				return d.Connectors.Connect(provider)
			}

			ln, err := net.Listen("tcp", d.Config.CallbackAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", d.Config.CallbackAddr, err)
			}
			return c.connectAndWait(cmd, d, ln, provider, wait)
		}),
	}
	connect.Flags().DurationVar(&wait, "wait", defaultConnectWait, "how long to wait for the browser to return; 0 only prints the URL")

	disconnect := &cobra.Command{
		Use:   "disconnect <provider>",
		Short: "Disconnect a data source",
		Args:  cobra.ExactArgs(1),
		RunE: c.authed(func(cmd *cobra.Command, args []string, d *Deps) error {
			if err := d.Connectors.Disconnect(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.p.success("%s", c.p.text(d.Connectors.Status()))
			if msg := d.Connectors.Error(); msg != "" {
				c.p.warning("%s", c.p.text(msg))
			}
			return nil
		}),
	}

	cmd.AddCommand(list, connect, disconnect)
	return cmd
}

// connectAndWait は認可URLを表示し、lnで戻りを受け付けて一覧を更新する。
func (c *cli) connectAndWait(cmd *cobra.Command, d *Deps, ln net.Listener, provider string, wait time.Duration) error {
	returnURL := fmt.Sprintf("http://%s%s", ln.Addr().String(), d.Config.CallbackPath)
	got, err := awaitReturn(cmd.Context(), d, ln, wait, func() error {
		if err := d.Connectors.Connect(provider); err != nil {
			return err
		}
		c.p.notice("Waiting for the browser to return to %s", returnURL)
		return nil
	})
	if err != nil {
		return err
	}

	c.p.success("%s", c.p.text(d.Connectors.Notice()))
	c.p.linef("%s", connector.BannerMessage)
	if got != provider {
		d.Logger.Warn("authorization returned for a different data source",
			slog.String("requested", provider),
			slog.String("returned", got),
		)
	}
	if err := d.Connectors.Load(cmd.Context()); err != nil {
		c.p.warning("%s", c.p.text(d.Connectors.Error()))
		return nil
	}
	c.printConnectors(d.Connectors)
	return nil
}

func (c *cli) printConnectors(ctrl *connector.Controller) {
	for _, conn := range ctrl.Connectors() {
		mark := "[ ]"
		if conn.Connected {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %-10s %s", mark, conn.ID, conn.Title)
		if conn.Optional {
			line += " (optional)"
		}
		line += " - " + string(ctrl.State(conn.ID))
		if conn.LastSyncedAt != nil {
			line += ", last synced " + conn.LastSyncedAt.Local().Format(time.DateTime)
		}
		c.p.linef("%s", line)
	}
}

func inCatalog(provider string) bool {
	for _, conn := range connector.DefaultCatalog() {
		if conn.ID == provider {
			return true
		}
	}
	return false
}

func (c *cli) newChatCmd() *cobra.Command {
	var quick string
	var history bool
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Talk to the assistant",
		Long:  "Send a single message, or start an interactive session when no message is given.\nIn the interactive session, /actions lists quick actions, /use <title> picks one, /retry resends a failed message and /quit exits.",
		RunE: c.authed(func(cmd *cobra.Command, args []string, d *Deps) error {
			if history {
				if err := d.Chat.LoadHistory(cmd.Context()); err != nil {
					c.p.warning("%s", c.p.text(err.Error()))
				}
				for _, m := range d.Chat.Transcript() {
					c.printMessage(m)
				}
			}
			if quick != "" {
				if err := d.Chat.SelectQuickAction(quick); err != nil {
					return err
				}
			}
			if len(args) > 0 {
				d.Chat.SetInput(d.Chat.Input() + strings.Join(args, " "))
				return c.submit(cmd, d.Chat)
			}
			return c.chatLoop(cmd, d.Chat)
		}),
	}
	cmd.Flags().StringVar(&quick, "quick", "", "start from a quick action, e.g. \"Write Copy\"")
	cmd.Flags().BoolVar(&history, "history", false, "show the stored conversation first")
	return cmd
}

// chatLoop は標準入力から1行ずつ読み、メッセージとして送信する。
func (c *cli) chatLoop(cmd *cobra.Command, ctrl *chat.Controller) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(c.p.out, "> ")
		if !scanner.Scan() {
			c.p.linef("")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/actions":
			for _, a := range chat.QuickActions() {
				c.p.linef("%-17s %s", a.Title, a.Description)
			}
			continue
		case strings.HasPrefix(line, "/use "):
			if err := ctrl.SelectQuickAction(strings.TrimSpace(strings.TrimPrefix(line, "/use "))); err != nil {
				c.p.error("%s", err.Error())
				continue
			}
			c.p.notice("Using %s. Type the rest of your request.", ctrl.Selected())
			continue
		case line == "/retry":
		default:
			input := line
			if action, ok := chat.FindQuickAction(ctrl.Selected()); ok {
				input = action.Seed() + line
			}
			ctrl.SetInput(input)
		}

		if err := c.submit(cmd, ctrl); err != nil {
			c.p.error("%s", c.p.text(err.Error()))
			if ctrl.Input() != "" {
				c.p.notice("Your message was kept. Type /retry to send it again.")
			}
		}
	}
}

// submit は入力中のメッセージを送信し、アシスタントの応答を表示する。
func (c *cli) submit(cmd *cobra.Command, ctrl *chat.Controller) error {
	before := len(ctrl.Transcript())
	if err := ctrl.Submit(cmd.Context()); err != nil {
		return err
	}
	transcript := ctrl.Transcript()
	if len(transcript) == before {
		return nil
	}
	c.printMessage(transcript[len(transcript)-1])
	c.p.notice("%s", ctrl.Status())
	return nil
}

func (c *cli) printMessage(m model.ChatMessage) {
	who := "You"
	if m.Role == model.ChatRoleAssistant {
		who = "Assistant"
	}
	c.p.linef("%s: %s", who, c.p.text(m.Content))
}

func displayName(identity *model.Identity) string {
	if identity.FullName != "" {
		return identity.FullName
	}
	return identity.Email
}
