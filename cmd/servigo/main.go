package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/api"
	"github.com/VPR42/servigo-go/internal/catalog"
	"github.com/VPR42/servigo-go/internal/chat"
	"github.com/VPR42/servigo-go/internal/config"
	"github.com/VPR42/servigo-go/internal/model"
	"github.com/VPR42/servigo-go/internal/session"
	"github.com/VPR42/servigo-go/internal/token"
)

const usage = `usage: servigo <command> [args]

commands:
  login <email> <password>      sign in and persist the session
  register <email> <password> <name>
  logout                        end the session
  whoami                        show the signed-in profile
  services [query]              browse the service catalog
  favorites                     list saved services
  favorite <serviceID>          save a service
  orders                        list your orders
  order <serviceID> [comment]   place an order
  chats                         list conversations
  chat <chatID>                 open a conversation (interactive)
`

func main() {
	godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	setLogLevel(cfg.LogLevel)

	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	tokens, err := token.OpenSQLite(cfg.StatePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state database")
	}

	var sess *session.Manager
	client := api.New(cfg.APIBaseURL, tokens,
		api.WithTimeout(cfg.HTTPTimeout()),
		api.WithAuthLostHandler(func() { sess.HandleAuthLost() }),
	)
	sess = session.NewManager(client, tokens)

	ctx := context.Background()
	if err := sess.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore session")
	}

	app := &app{cfg: cfg, client: client, sess: sess}
	if err := app.run(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	client *api.Client
	sess   *session.Manager
}

func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		return a.sess.Logout(ctx)
	case "whoami":
		return a.whoami()
	case "services":
		return a.services(ctx, rest)
	case "favorites":
		return a.favorites(ctx)
	case "favorite":
		return a.favorite(ctx, rest)
	case "orders":
		return a.orders(ctx)
	case "order":
		return a.order(ctx, rest)
	case "chats":
		return a.chats(ctx)
	case "chat":
		return a.chat(ctx, rest)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: login <email> <password>")
	}
	if err := a.sess.Login(ctx, model.Credentials{Email: args[0], Password: args[1]}); err != nil {
		return err
	}
	fmt.Println("signed in as", a.sess.User().Name)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: register <email> <password> <name>")
	}
	params := model.RegisterParams{
		Email:    args[0],
		Password: args[1],
		Name:     strings.Join(args[2:], " "),
	}
	if err := a.sess.Register(ctx, params); err != nil {
		return err
	}
	fmt.Println("registered as", a.sess.User().Name)
	return nil
}

func (a *app) whoami() error {
	user := a.sess.User()
	if user == nil {
		fmt.Println("not signed in")
		return nil
	}
	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	return nil
}

func (a *app) services(ctx context.Context, args []string) error {
	filter := model.ServiceFilter{}
	if len(args) > 0 {
		filter.Query = strings.Join(args, " ")
	}
	page, err := catalog.NewStore(a.client).Refresh(ctx, filter)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, svc := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%d\n", svc.ID, svc.Title, svc.Price)
	}
	w.Flush()
	if page.HasMore {
		fmt.Printf("(%d of %d shown)\n", len(page.Items), page.Total)
	}
	return nil
}

func (a *app) favorites(ctx context.Context) error {
	favorites, err := a.client.Favorites(ctx)
	if err != nil {
		return err
	}
	if len(favorites) == 0 {
		fmt.Println("no favorites yet")
		return nil
	}
	for _, svc := range favorites {
		fmt.Printf("%s  %s\n", svc.ID, svc.Title)
	}
	return nil
}

func (a *app) favorite(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: favorite <serviceID>")
	}
	return a.client.AddFavorite(ctx, args[0])
}

func (a *app) orders(ctx context.Context) error {
	orders, err := a.client.Orders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("no orders yet")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, order := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\n", order.ID, order.ServiceID, order.Status)
	}
	return w.Flush()
}

func (a *app) order(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: order <serviceID> [comment]")
	}
	params := model.CreateOrderParams{ServiceID: args[0]}
	if len(args) > 1 {
		params.Comment = strings.Join(args[1:], " ")
	}
	order, err := a.client.CreateOrder(ctx, params)
	if err != nil {
		return err
	}
	fmt.Println("order placed:", order.ID)
	return nil
}

func (a *app) chats(ctx context.Context) error {
	user := a.sess.User()
	if user == nil {
		return fmt.Errorf("sign in first")
	}
	manager := chat.NewManager(a.client, a.cfg.WSURL(), user.ID)
	chats, err := manager.LoadChats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Println("no conversations yet")
		return nil
	}
	for _, c := range chats {
		preview := ""
		if c.LastMessage != nil {
			preview = c.LastMessage.Content
		}
		fmt.Printf("%s  %s  %s\n", c.ID, c.Chatmate.Name, preview)
	}
	return nil
}

// chat opens an interactive conversation: history first, then pushed messages
// as they arrive, and every stdin line is sent.
func (a *app) chat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chat <chatID>")
	}
	user := a.sess.User()
	if user == nil {
		return fmt.Errorf("sign in first")
	}
	chatID := args[0]

	manager := chat.NewManager(a.client, a.cfg.WSURL(), user.ID)
	if _, err := manager.LoadChats(ctx); err != nil {
		return err
	}
	if err := manager.Activate(ctx, chatID); err != nil {
		return err
	}
	defer manager.Deactivate()

	for _, msg := range manager.Messages(chatID) {
		printMessage(msg, user.ID)
	}
	fmt.Println("-- connected, type to send, ctrl-d to leave --")

	seen := len(manager.Messages(chatID))
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := manager.Send(ctx, line); err != nil {
				fmt.Fprintln(os.Stderr, "send failed:", err)
			}
			// Print everything that arrived since the last send, our own
			// line included.
			for _, msg := range manager.Messages(chatID)[seen:] {
				printMessage(msg, user.ID)
			}
			seen = len(manager.Messages(chatID))
		}
	}()

	<-done
	return nil
}

func printMessage(msg model.Message, selfID string) {
	who := msg.SenderID
	if msg.SenderID == selfID {
		who = "you"
	}
	fmt.Printf("[%s] %s: %s\n", msg.SentAt.Format("15:04"), who, msg.Content)
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
