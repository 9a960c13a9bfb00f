package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/api"
	"github.com/beingharisali/martchat/internal/config"
	"github.com/beingharisali/martchat/internal/model"
	"github.com/beingharisali/martchat/internal/session"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profile := session.Resolve(*profileFlag)
	if err := session.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// init writes the profile other commands read, so it runs before the
	// profile load.
	if args[0] == "init" {
		a := requireArgs(args, 4, "init <api_url> <socket_url> <token>")
		initProfile(profile, a[1], a[2], a[3])
		return
	}

	prof, err := config.LoadProfile(session.ProfilePath(profile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot load profile %q: %v\n", profile, err)
		os.Exit(1)
	}
	client, err := api.New(prof.APIURL, prof.Token, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c := &ctl{client: client, jsonOut: *jsonFlag}

	switch args[0] {
	case "whoami":
		c.whoami(ctx)
	case "chats":
		c.chats(ctx)
	case "messages":
		c.messages(ctx, requireArgs(args, 2, "messages <chatID>")[1])
	case "send":
		a := requireArgs(args, 3, "send <chatID> <text...>")
		c.send(ctx, a[1], strings.Join(a[2:], " "))
	case "search":
		c.search(ctx, requireArgs(args, 2, "search <query>")[1])
	case "direct":
		c.direct(ctx, requireArgs(args, 2, "direct <userID>")[1])
	case "group":
		a := requireArgs(args, 3, "group <name> <userID>...")
		c.group(ctx, a[1], a[2:])
	case "rename":
		a := requireArgs(args, 3, "rename <chatID> <name...>")
		c.rename(ctx, a[1], strings.Join(a[2:], " "))
	case "add":
		a := requireArgs(args, 3, "add <chatID> <userID>")
		c.add(ctx, a[1], a[2])
	case "remove":
		a := requireArgs(args, 3, "remove <chatID> <userID>")
		c.remove(ctx, a[1], a[2])
	case "delete":
		c.deleteChat(ctx, requireArgs(args, 2, "delete <chatID>")[1])
	case "delete-message":
		c.deleteMessage(ctx, requireArgs(args, 2, "delete-message <messageID>")[1])
	case "delete-group":
		c.deleteGroup(ctx, requireArgs(args, 2, "delete-group <chatID>")[1])
	case "block":
		c.block(ctx, requireArgs(args, 2, "block <chatID>")[1])
	case "unblock":
		c.unblock(ctx, requireArgs(args, 2, "unblock <chatID>")[1])
	case "read":
		c.markRead(ctx, requireArgs(args, 2, "read <chatID>")[1])
	case "clear-notifications":
		c.clearNotifications(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: martchatctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  init <api_url> <socket_url> <token>  Write the profile files")
	fmt.Fprintln(os.Stderr, "  whoami                          Show the signed-in user")
	fmt.Fprintln(os.Stderr, "  chats                           List chats")
	fmt.Fprintln(os.Stderr, "  messages <chatID>               List messages of a chat")
	fmt.Fprintln(os.Stderr, "  send <chatID> <text...>         Send a text message")
	fmt.Fprintln(os.Stderr, "  search <query>                  Search users by name or email")
	fmt.Fprintln(os.Stderr, "  direct <userID>                 Open (or create) the direct chat")
	fmt.Fprintln(os.Stderr, "  group <name> <userID>...        Create a group chat")
	fmt.Fprintln(os.Stderr, "  rename <chatID> <name...>       Rename a group chat")
	fmt.Fprintln(os.Stderr, "  add <chatID> <userID>           Add a member to a group")
	fmt.Fprintln(os.Stderr, "  remove <chatID> <userID>        Remove a member from a group")
	fmt.Fprintln(os.Stderr, "  delete <chatID>                 Delete a direct chat")
	fmt.Fprintln(os.Stderr, "  delete-message <messageID>      Delete a message")
	fmt.Fprintln(os.Stderr, "  delete-group <chatID>           Delete a group chat")
	fmt.Fprintln(os.Stderr, "  block <chatID>                  Block a chat")
	fmt.Fprintln(os.Stderr, "  unblock <chatID>                Unblock a chat")
	fmt.Fprintln(os.Stderr, "  read <chatID>                   Mark a chat read")
	fmt.Fprintln(os.Stderr, "  clear-notifications             Clear message notifications")
}

// initProfile writes profile.toml for the named profile and, when no
// global config exists yet, makes this profile the default.
func initProfile(name, apiURL, socketURL, token string) {
	exitOn(session.EnsureDir(name))
	exitOn(config.SaveProfile(session.ProfilePath(name), &config.Profile{
		APIURL:    apiURL,
		SocketURL: socketURL,
		Token:     token,
	}))
	if _, err := os.Stat(session.ConfigPath()); os.IsNotExist(err) {
		exitOn(config.Save(session.ConfigPath(), &config.Config{DefaultProfile: name}))
	}
	fmt.Printf("profile %q written to %s\n", name, session.ProfilePath(name))
}

func requireArgs(args []string, n int, usage string) []string {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: martchatctl %s\n", usage)
		os.Exit(1)
	}
	return args
}

type ctl struct {
	client  *api.Client
	jsonOut bool
}

func (c *ctl) whoami(ctx context.Context) {
	user, err := c.client.Profile(ctx)
	exitOn(err)
	if c.jsonOut {
		outputJSON(user)
		return
	}
	fmt.Printf("%s <%s> (%s)\n", user.FullName(), user.Email, user.Role)
}

func (c *ctl) chats(ctx context.Context) {
	chats, err := c.client.ListChats(ctx)
	exitOn(err)
	if c.jsonOut {
		outputJSON(chats)
		return
	}
	user, err := c.client.Profile(ctx)
	exitOn(err)
	for i := range chats {
		ch := &chats[i]
		kind := "direct"
		if ch.IsGroupChat {
			kind = "group"
		}
		preview := ""
		if ch.LatestMessage != nil {
			preview = ch.LatestMessage.Content
		}
		fmt.Printf("%-26s %-6s %-30s %s\n", ch.ID, kind, model.ChatDisplayName(*user, ch), preview)
	}
}

func (c *ctl) messages(ctx context.Context, chatID string) {
	msgs, err := c.client.ListMessages(ctx, chatID)
	exitOn(err)
	if c.jsonOut {
		outputJSON(msgs)
		return
	}
	for i := range msgs {
		m := &msgs[i]
		fmt.Printf("%s %-20s %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Sender.FullName(), m.Content)
	}
}

func (c *ctl) send(ctx context.Context, chatID, text string) {
	msg, err := c.client.SendMessage(ctx, chatID, text, nil)
	exitOn(err)
	if c.jsonOut {
		outputJSON(msg)
		return
	}
	fmt.Printf("sent %s\n", msg.ID)
}

func (c *ctl) search(ctx context.Context, query string) {
	users, err := c.client.SearchUsers(ctx, query)
	exitOn(err)
	if c.jsonOut {
		outputJSON(users)
		return
	}
	for _, u := range users {
		fmt.Printf("%-26s %-30s %-30s %s\n", u.ID, u.FullName(), u.Email, u.Role)
	}
}

func (c *ctl) direct(ctx context.Context, userID string) {
	chat, err := c.client.AccessChat(ctx, userID)
	exitOn(err)
	if c.jsonOut {
		outputJSON(chat)
		return
	}
	fmt.Printf("chat %s\n", chat.ID)
}

func (c *ctl) group(ctx context.Context, name string, userIDs []string) {
	chat, err := c.client.CreateGroup(ctx, name, userIDs)
	exitOn(err)
	if c.jsonOut {
		outputJSON(chat)
		return
	}
	fmt.Printf("group %s created (%d members)\n", chat.ID, len(chat.Users))
}

func (c *ctl) rename(ctx context.Context, chatID, name string) {
	chat, err := c.client.RenameGroup(ctx, chatID, name)
	exitOn(err)
	if c.jsonOut {
		outputJSON(chat)
		return
	}
	fmt.Printf("renamed to %s\n", chat.ChatName)
}

func (c *ctl) add(ctx context.Context, chatID, userID string) {
	chat, err := c.client.AddToGroup(ctx, chatID, userID)
	exitOn(err)
	if c.jsonOut {
		outputJSON(chat)
		return
	}
	fmt.Printf("group has %d members\n", len(chat.Users))
}

func (c *ctl) remove(ctx context.Context, chatID, userID string) {
	chat, err := c.client.RemoveFromGroup(ctx, chatID, userID)
	exitOn(err)
	if c.jsonOut {
		outputJSON(chat)
		return
	}
	fmt.Printf("group has %d members\n", len(chat.Users))
}

func (c *ctl) deleteChat(ctx context.Context, chatID string) {
	exitOn(c.client.DeleteChat(ctx, chatID))
	fmt.Println("deleted")
}

func (c *ctl) deleteMessage(ctx context.Context, messageID string) {
	exitOn(c.client.DeleteMessage(ctx, messageID))
	fmt.Println("deleted")
}

func (c *ctl) deleteGroup(ctx context.Context, chatID string) {
	exitOn(c.client.DeleteGroup(ctx, chatID))
	fmt.Println("deleted")
}

func (c *ctl) block(ctx context.Context, chatID string) {
	exitOn(c.client.BlockChat(ctx, chatID))
	fmt.Println("blocked")
}

func (c *ctl) unblock(ctx context.Context, chatID string) {
	exitOn(c.client.UnblockChat(ctx, chatID))
	fmt.Println("unblocked")
}

func (c *ctl) markRead(ctx context.Context, chatID string) {
	exitOn(c.client.MarkChatRead(ctx, chatID))
	fmt.Println("marked read")
}

func (c *ctl) clearNotifications(ctx context.Context) {
	exitOn(c.client.ClearNotifications(ctx))
	fmt.Println("notifications cleared")
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
