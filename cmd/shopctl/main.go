// Command shopctl is a CLI console for the storefront core: authentication,
// catalog management, order tracking, backup and storage telemetry.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/audit"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/fingerprint"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/limiter"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/migrate"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository/kvstore"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/service"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/session"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage/postgres"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `shopctl - storefront console

Usage: shopctl [flags] <command> [command flags]

Commands:
  seed            populate the catalog with demo products
  register        create an account
  login           authenticate and persist a session
  logout          clear the persisted session
  whoami          show the active session
  change-password rotate the account secret
  twofa           enable or disable two-factor login
  clear-flags     reset security flags for an email
  products        list products
  product-add     add a product
  product-update  update a product
  product-del     delete a product
  orders          list orders
  order-place     place an order
  order-status    advance an order's status
  settings        show storefront settings
  usage           show storage usage against the quota
  audit           show the security event trail
  export          write a backup snapshot to a file
  import          restore a backup snapshot from a file
`

func dataDir() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "shopctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "shopctl")
}

// app bundles the wired services for command handlers.
type app struct {
	auth    service.AuthService
	catalog service.CatalogService
	backup  service.BackupService
	trail   *audit.Log
	logger  *zap.Logger
}

func main() {
	dir := flag.String("data", dataDir(), "data directory for the file backend")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides the file backend)")
	signKey := flag.String("sign-key", "shopctl-dev-key", "HS256 key for the stored session record")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var backend storage.Backend
	if *dsn != "" {
		if err := migrate.Up(ctx, *dsn); err != nil {
			fatal(logger, "migrate up", err)
		}
		db, err := postgres.New(ctx, *dsn)
		if err != nil {
			fatal(logger, "connect postgres", err)
		}
		defer db.Close()
		backend = postgres.NewKV(db)
	} else {
		fb, err := storage.NewFile(*dir)
		if err != nil {
			fatal(logger, "open data directory", err)
		}
		backend = fb
	}

	store := storage.New(backend, storage.WithLogger(logger))
	fp := fingerprint.Env{}
	trail := audit.NewLog(store, fp, nil, logger)
	history := audit.NewHistory(store, fp, nil)
	users := kvstore.NewUsers(store, nil)
	products := kvstore.NewProducts(store, nil)
	orders := kvstore.NewOrders(store, nil)
	settings := kvstore.NewSettings(store)
	lim := limiter.NewMemory(limiter.DefaultWindow, limiter.DefaultMaxAttempts, nil)
	codec := session.NewCodec([]byte(*signKey), nil)

	a := &app{
		auth: service.NewAuthService(users, store, lim, trail, history, fp, codec,
			service.WithLogger(logger)),
		catalog: service.NewCatalogService(products, orders, settings, store, logger),
		backup:  service.NewBackupService(products, orders, settings, store, nil),
		trail:   trail,
		logger:  logger,
	}
	defer a.auth.Close()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := a.run(ctx, cmd, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func fatal(logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	fmt.Fprintln(os.Stderr, "error:", msg+":", err)
	os.Exit(1)
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "seed":
		return a.seed(ctx)
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.auth.Logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "change-password":
		return a.changePassword(ctx, args)
	case "twofa":
		return a.twofa(ctx, args)
	case "clear-flags":
		return a.clearFlags(ctx, args)
	case "products":
		return a.products(ctx)
	case "product-add":
		return a.productAdd(ctx, args)
	case "product-update":
		return a.productUpdate(ctx, args)
	case "product-del":
		return a.productDel(ctx, args)
	case "orders":
		return a.orders(ctx)
	case "order-place":
		return a.orderPlace(ctx, args)
	case "order-status":
		return a.orderStatus(ctx, args)
	case "settings":
		return a.settings(ctx)
	case "usage":
		return a.usage(ctx)
	case "audit":
		return a.audit(ctx)
	case "export":
		return a.exportSnapshot(ctx, args)
	case "import":
		return a.importSnapshot(ctx, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) seed(ctx context.Context) error {
	if err := a.catalog.SeedDefaults(ctx); err != nil {
		return err
	}
	fmt.Println("catalog seeded")
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "account password")
	_ = fs.Parse(args)

	err := a.auth.Register(ctx, *email, *name, *password)
	var weak *errs.WeakSecretError
	if errors.As(err, &weak) {
		for _, f := range weak.Feedback {
			fmt.Println("-", f)
		}
		return err
	}
	if err != nil {
		return err
	}
	fmt.Println("registered", *email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "extend the session to 30 days")
	_ = fs.Parse(args)

	res, err := a.auth.Login(ctx, *email, *password, *remember)
	var rl *errs.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("too many login attempts, try again in %d minutes", rl.RemainingMinutes())
	}
	if err != nil {
		return err
	}

	if res.RequiresTwoFactor {
		// No delivery channel exists in this simulation; surface the code.
		fmt.Println("two-factor code:", res.TwoFactorCode)
		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("enter code: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			sess, err := a.auth.VerifyTwoFactor(ctx, strings.TrimSpace(line))
			if errors.Is(err, errs.ErrNoPendingLogin) {
				return err
			}
			if errors.Is(err, errs.ErrInvalidCode) {
				fmt.Println("invalid code, try again")
				continue
			}
			if err != nil {
				return err
			}
			fmt.Printf("welcome back, %s (%s)\n", sess.Name, sess.Role)
			return nil
		}
	}

	fmt.Printf("welcome back, %s (%s)\n", res.Session.Name, res.Session.Role)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	sess, err := a.auth.CurrentSession(ctx)
	if errors.Is(err, errs.ErrNotFound) {
		fmt.Println("not logged in")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s> role=%s expires=%s\n",
		sess.Name, sess.Email, sess.Role, sess.ExpiresAt.Format("2006-01-02 15:04"))
	return nil
}

func (a *app) changePassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ExitOnError)
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	_ = fs.Parse(args)

	err := a.auth.ChangeSecret(ctx, *current, *next)
	var weak *errs.WeakSecretError
	if errors.As(err, &weak) {
		for _, f := range weak.Feedback {
			fmt.Println("-", f)
		}
		return err
	}
	if err != nil {
		return err
	}
	fmt.Println("password changed")
	return nil
}

func (a *app) twofa(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("twofa", flag.ExitOnError)
	on := fs.Bool("on", false, "enable two-factor login")
	off := fs.Bool("off", false, "disable two-factor login")
	_ = fs.Parse(args)

	if *on == *off {
		return errors.New("specify exactly one of -on or -off")
	}
	if err := a.auth.SetTwoFactorEnabled(ctx, *on); err != nil {
		return err
	}
	if *on {
		fmt.Println("two-factor enabled")
	} else {
		fmt.Println("two-factor disabled")
	}
	return nil
}

func (a *app) clearFlags(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear-flags", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	_ = fs.Parse(args)

	if err := a.auth.ClearSecurityFlags(ctx, *email); err != nil {
		return err
	}
	fmt.Println("security flags cleared for", *email)
	return nil
}

func (a *app) products(ctx context.Context) error {
	products, err := a.catalog.Products(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		fmt.Printf("%4d  %-24s %8.2f  stock=%-4d %-12s %s\n",
			p.ID, p.Name, p.Price, p.Stock, p.Category, p.Status)
	}
	return nil
}

func (a *app) productAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("product-add", flag.ExitOnError)
	name := fs.String("name", "", "product name")
	price := fs.Float64("price", 0, "unit price")
	category := fs.String("category", "", "category")
	stock := fs.Int("stock", 0, "stock count")
	desc := fs.String("desc", "", "description")
	_ = fs.Parse(args)

	p, err := a.catalog.AddProduct(ctx, model.Product{
		Name: *name, Price: *price, Category: *category, Stock: *stock, Description: *desc,
	})
	if err != nil {
		return err
	}
	fmt.Println("added product", p.ID)
	return nil
}

func (a *app) productUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("product-update", flag.ExitOnError)
	id := fs.Int("id", 0, "product id")
	name := fs.String("name", "", "product name")
	price := fs.Float64("price", 0, "unit price")
	category := fs.String("category", "", "category")
	stock := fs.Int("stock", 0, "stock count")
	desc := fs.String("desc", "", "description")
	status := fs.String("status", string(model.ProductActive), "active|inactive")
	_ = fs.Parse(args)

	p, err := a.catalog.UpdateProduct(ctx, model.Product{
		ID: *id, Name: *name, Price: *price, Category: *category,
		Stock: *stock, Description: *desc, Status: model.ProductStatus(*status),
	})
	if err != nil {
		return err
	}
	fmt.Println("updated product", p.ID)
	return nil
}

func (a *app) productDel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("product-del", flag.ExitOnError)
	id := fs.Int("id", 0, "product id")
	_ = fs.Parse(args)

	if err := a.catalog.DeleteProduct(ctx, *id); err != nil {
		return err
	}
	fmt.Println("deleted product", *id)
	return nil
}

func (a *app) orders(ctx context.Context) error {
	orders, err := a.catalog.Orders(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Printf("%-12s %-20s items=%-3d %8.2f  %-10s %s\n",
			o.ID, o.Customer, o.ItemCount, o.Amount, o.Status, o.TrackingNumber)
	}
	return nil
}

// parseLines parses "name:price:qty" items separated by commas.
func parseLines(spec string) ([]model.OrderLine, error) {
	var lines []model.OrderLine
	for _, part := range strings.Split(spec, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("bad item %q, want name:price:qty", part)
		}
		price, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad price in %q: %w", part, err)
		}
		qty, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("bad quantity in %q: %w", part, err)
		}
		lines = append(lines, model.OrderLine{Name: fields[0], Price: price, Quantity: qty})
	}
	return lines, nil
}

func (a *app) orderPlace(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("order-place", flag.ExitOnError)
	customer := fs.String("customer", "", "customer name")
	email := fs.String("email", "", "customer email")
	items := fs.String("items", "", "comma-separated name:price:qty items")
	_ = fs.Parse(args)

	lines, err := parseLines(*items)
	if err != nil {
		return err
	}
	o, err := a.catalog.PlaceOrder(ctx, model.Order{
		Customer: *customer, Email: *email, Lines: lines,
	})
	if err != nil {
		return err
	}
	fmt.Printf("placed %s amount=%.2f tracking=%s\n", o.ID, o.Amount, o.TrackingNumber)
	return nil
}

func (a *app) orderStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("order-status", flag.ExitOnError)
	id := fs.String("id", "", "order id")
	status := fs.String("status", "", "new status")
	_ = fs.Parse(args)

	o, err := a.catalog.AdvanceOrder(ctx, *id, model.OrderStatus(*status))
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s\n", o.ID, o.Status)
	return nil
}

func (a *app) settings(ctx context.Context) error {
	s, err := a.catalog.Settings(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) usage(ctx context.Context) error {
	u := a.catalog.Usage(ctx)
	fmt.Printf("usage: %d bytes of %d (%d%%)\n", u.Bytes, u.CeilingBytes, u.Percent)
	if u.NearCapacity {
		fmt.Println("warning: storage is near capacity")
	}
	return nil
}

func (a *app) audit(ctx context.Context) error {
	for _, e := range a.trail.Events(ctx) {
		fmt.Printf("%s  %-22s %v\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Details)
	}
	return nil
}

func (a *app) exportSnapshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "backup.json", "output file")
	_ = fs.Parse(args)

	snap, err := a.backup.Export(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return err
	}
	fmt.Println("exported to", *out)
	return nil
}

func (a *app) importSnapshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("i", "backup.json", "input file")
	_ = fs.Parse(args)

	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if err := a.backup.Import(ctx, snap); err != nil {
		return err
	}
	fmt.Println("imported from", *in)
	return nil
}
