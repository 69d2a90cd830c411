// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bvk/pairbot/ctxutil"
	"github.com/bvk/pairbot/kvutil"
	"github.com/bvk/pairbot/syncmap"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type Command struct {
	Purpose string
	Handler cli.CmdFunc
}

// gobChats is the persistent mapping from user names to private chat ids. A
// user becomes reachable for notifications after messaging the bot once.
type gobChats struct {
	UserChatIDMap map[string]int64
}

// Client is a telegram bot that delivers notifications to its users and
// answers their slash commands.
type Client struct {
	cg ctxutil.CloseGroup

	db kv.Database

	bot *bot.Bot

	self *models.User

	secrets *Secrets

	mu sync.Mutex

	chats *gobChats

	commandMap syncmap.Map[string, *Command]
}

var start = time.Now()

func New(ctx context.Context, db kv.Database, secrets *Secrets) (*Client, error) {
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	c := &Client{
		db:      db,
		secrets: secrets.Clone(),
	}

	b, err := bot.New(secrets.BotToken, bot.WithDefaultHandler(c.handler))
	if err != nil {
		return nil, fmt.Errorf("could not create telegram bot: %w", err)
	}
	c.bot = b

	self, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch bot user: %w", err)
	}
	c.self = self

	chats, err := kvutil.GetDB[gobChats](ctx, db, c.chatsKey())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		chats = &gobChats{UserChatIDMap: make(map[string]int64)}
	}
	c.chats = chats

	c.commandMap.Store("uptime", &Command{
		Purpose: "Prints how long the bot has been running",
		Handler: c.uptime,
	})
	if err := c.publishCommands(ctx); err != nil {
		return nil, err
	}

	c.cg.Go(context.Background(), func(ctx context.Context) {
		c.bot.Start(ctx)
	})
	return c, nil
}

func (c *Client) Close() error {
	c.cg.Close()
	return nil
}

func (c *Client) chatsKey() string {
	return path.Join("/telegram", c.self.Username, "chats")
}

// AddCommand registers a slash command. Handler output written to
// cli.Stdout is sent back as the reply.
func (c *Client) AddCommand(ctx context.Context, name, purpose string, handler cli.CmdFunc) error {
	if len(name) == 0 || len(purpose) == 0 || handler == nil {
		return os.ErrInvalid
	}
	if _, ok := c.commandMap.Load(name); ok {
		return os.ErrExist
	}
	c.commandMap.Store(name, &Command{Purpose: purpose, Handler: handler})
	return c.publishCommands(ctx)
}

func (c *Client) publishCommands(ctx context.Context) error {
	var cmds []models.BotCommand
	c.commandMap.Range(func(name string, cmd *Command) bool {
		cmds = append(cmds, models.BotCommand{Command: name, Description: cmd.Purpose})
		return true
	})
	slices.SortFunc(cmds, func(a, b models.BotCommand) int {
		return strings.Compare(a.Command, b.Command)
	})
	if ok, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: cmds}); err != nil {
		return fmt.Errorf("could not set bot commands: %w", err)
	} else if !ok {
		return fmt.Errorf("could not set bot commands")
	}
	return nil
}

// SendMessage notifies every known user. Users who never messaged the bot
// are skipped.
func (c *Client) SendMessage(ctx context.Context, at time.Time, text string) error {
	msg := at.Format("2006-01-02 15:04:05 MST") + " " + text

	c.mu.Lock()
	var chatIDs []int64
	for _, user := range c.secrets.Users() {
		if cid, ok := c.chats.UserChatIDMap[user]; ok {
			chatIDs = append(chatIDs, cid)
		} else {
			slog.Warn("could not notify user without a chat id", "user", user)
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, cid := range chatIDs {
		if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: cid, Text: msg}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	user := update.Message.From.Username
	if !slices.Contains(c.secrets.Users(), user) {
		slog.Warn("received message from unknown user (ignored)", "user", user, "message", update.Message.Text)
		return
	}
	if err := c.rememberChat(ctx, user, update.Message.Chat.ID); err != nil {
		slog.Warn("could not save chat id (ignored)", "user", user, "err", err)
	}

	reply := c.respond(ctx, update)
	if len(reply) == 0 {
		return
	}
	p := &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   reply,
		ReplyParameters: &models.ReplyParameters{
			MessageID: update.Message.ID,
		},
	}
	if _, err := c.bot.SendMessage(ctx, p); err != nil {
		slog.Error("could not reply to user command (ignored)", "user", user, "err", err)
	}
}

func (c *Client) respond(ctx context.Context, update *models.Update) string {
	name, args, err := parseCommand(update.Message)
	if err != nil {
		return "not a command"
	}
	cmd, ok := c.commandMap.Load(name)
	if !ok {
		return fmt.Sprintf("unknown command %q", name)
	}
	var sb strings.Builder
	if err := cmd.Handler(cli.WithStdout(ctx, &sb), args); err != nil {
		slog.Error("could not handle user command (ignored)", "cmd", name, "err", err)
		return err.Error()
	}
	return sb.String()
}

// parseCommand splits a message that starts with a bot command entity into
// the command name and its arguments.
func parseCommand(m *models.Message) (string, []string, error) {
	if len(m.Entities) == 0 {
		return "", nil, os.ErrInvalid
	}
	entity := m.Entities[0]
	if entity.Type != models.MessageEntityTypeBotCommand || entity.Offset != 0 {
		return "", nil, os.ErrInvalid
	}
	if entity.Length < 2 || entity.Length > len(m.Text) || m.Text[0] != '/' {
		return "", nil, os.ErrInvalid
	}
	name := m.Text[1:entity.Length]
	// Commands in groups are addressed as /name@botname.
	name, _, _ = strings.Cut(name, "@")
	args := strings.Fields(m.Text[entity.Length:])
	return name, args, nil
}

func (c *Client) rememberChat(ctx context.Context, user string, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.chats.UserChatIDMap[user]; ok && id == chatID {
		return nil
	}
	c.chats.UserChatIDMap[user] = chatID
	slog.Info("saving chat id for user", "user", user, "chat-id", chatID)
	return kvutil.SetDB(ctx, c.db, c.chatsKey(), c.chats)
}

func (c *Client) uptime(ctx context.Context, _ []string) error {
	stdout := cli.Stdout(ctx)
	const day = 24 * time.Hour
	d := time.Since(start).Round(time.Second)
	if d < day {
		fmt.Fprintf(stdout, "%v", d)
		return nil
	}
	fmt.Fprintf(stdout, "%dd%v", d/day, d%day)
	return nil
}
