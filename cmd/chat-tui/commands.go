// ABOUTME: Slash-command handling and live message printing for chat-tui
// ABOUTME: Plain input lines are sent to the selected contact

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/arham771790/Chat-Frontend/internal/api"
	"github.com/arham771790/Chat-Frontend/internal/conversation"
	"github.com/arham771790/Chat-Frontend/internal/push"
	"github.com/arham771790/Chat-Frontend/internal/session"
)

var (
	selfColor = color.New(color.FgCyan, color.Bold)
	peerColor = color.New(color.FgGreen, color.Bold)
	dimColor  = color.New(color.Faint)
)

// app holds the REPL state shared by the input loop and the live printer.
type app struct {
	session *session.Manager
	conv    *conversation.Store
	channel *push.Channel

	mu      sync.Mutex
	out     io.Writer
	peerID  string          // contact whose live messages are printed
	printed map[string]bool // message ids already shown for peerID
}

func newApp(out io.Writer, mgr *session.Manager, conv *conversation.Store, channel *push.Channel) *app {
	return &app{
		session: mgr,
		conv:    conv,
		channel: channel,
		out:     out,
		printed: make(map[string]bool),
	}
}

// command is a parsed input line.
type command struct {
	name string // without the leading slash; empty for plain text
	args []string
	rest string // everything after the name, trimmed
}

// parseCommand splits a line into a command. Lines not starting with a
// slash are plain text.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{rest: line}
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	cmd := command{name: strings.ToLower(name), rest: strings.TrimSpace(rest)}
	if cmd.rest != "" {
		cmd.args = strings.Fields(cmd.rest)
	}
	return cmd
}

// handle runs one input line and reports whether to quit.
func (a *app) handle(ctx context.Context, line string) bool {
	cmd := parseCommand(line)

	var err error
	switch cmd.name {
	case "":
		err = a.send(ctx, api.SendRequest{Text: cmd.rest})
	case "quit", "exit", "q":
		return true
	case "help":
		a.printHelp()
	case "signup":
		err = a.signup(ctx, cmd)
	case "login":
		err = a.login(ctx, cmd)
	case "logout":
		err = a.logout(ctx)
	case "me":
		a.me(ctx)
	case "profile":
		err = a.profile(ctx, cmd)
	case "avatar":
		err = a.avatar(ctx, cmd)
	case "users":
		err = a.users(ctx, cmd)
	case "use":
		err = a.use(ctx, cmd)
	case "close":
		a.closeConversation()
	case "history":
		a.history()
	case "reconnect":
		err = a.reconnect(ctx)
	case "image":
		err = a.image(ctx, cmd)
	default:
		err = fmt.Errorf("unknown command /%s, try /help", cmd.name)
	}

	if err != nil {
		a.printf("%s %v\n", color.RedString("[error]"), err)
	}
	return false
}

func (a *app) printHelp() {
	a.printf("Commands:\n")
	a.printf("  /signup <email> <password> <full name>   Create an account\n")
	a.printf("  /login <email> <password>                Sign in\n")
	a.printf("  /logout                                  Sign out and forget the session\n")
	a.printf("  /me                                      Show the signed-in user\n")
	a.printf("  /profile name <full name>                Change your display name\n")
	a.printf("  /avatar <file>                           Upload a profile picture\n")
	a.printf("  /users [online]                          List contacts\n")
	a.printf("  /use <id|name>                           Open a conversation\n")
	a.printf("  /close                                   Leave the conversation\n")
	a.printf("  /history                                 Reprint the conversation\n")
	a.printf("  /image <file> [caption]                  Send an image\n")
	a.printf("  /reconnect                               Reopen a dropped push connection\n")
	a.printf("  /help                                    Show this help\n")
	a.printf("  /quit                                    Exit\n")
	a.printf("Anything else is sent to the open conversation.\n")
}

func (a *app) signup(ctx context.Context, cmd command) error {
	if len(cmd.args) < 3 {
		return errors.New("usage: /signup <email> <password> <full name>")
	}
	req := api.SignupRequest{
		Email:    cmd.args[0],
		Password: cmd.args[1],
		FullName: strings.Join(cmd.args[2:], " "),
	}
	if err := a.session.Signup(ctx, req); err != nil {
		return nil // already reported by the notifier
	}
	a.greet(ctx)
	return nil
}

func (a *app) login(ctx context.Context, cmd command) error {
	if len(cmd.args) != 2 {
		return errors.New("usage: /login <email> <password>")
	}
	if err := a.session.Login(ctx, api.Credentials{Email: cmd.args[0], Password: cmd.args[1]}); err != nil {
		return nil
	}
	a.greet(ctx)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	a.closeConversation()
	a.conv.Reset()
	return a.session.Logout(ctx)
}

func (a *app) me(ctx context.Context) {
	user := a.session.User()
	if user == nil {
		a.printf("Not signed in.\n")
		return
	}
	a.printf("%s <%s>\n", selfColor.Sprint(user.FullName), user.Email)
	a.printf("  id:      %s\n", user.ID)
	if user.CreatedAt != "" {
		a.printf("  joined:  %s\n", conversation.FormatMessageTime(user.CreatedAt))
	}
	if user.ProfilePic != "" {
		a.printf("  avatar:  %s\n", describeImage(user.ProfilePic))
	}
	if status := a.channel.Status(); status.Connected {
		a.printf("  push:    connected, %d contacts online\n", a.conv.OnlineCount(a.channel.Presence()))
	} else {
		a.printf("  push:    disconnected\n")
	}
	if expiresAt, ok := a.session.TokenExpiry(ctx); ok {
		remaining := time.Until(expiresAt).Round(time.Second)
		if remaining <= 0 {
			a.printf("  token:   expired\n")
		} else {
			a.printf("  token:   expires in %s\n", remaining)
		}
	}
}

func (a *app) profile(ctx context.Context, cmd command) error {
	if len(cmd.args) < 2 || cmd.args[0] != "name" {
		return errors.New("usage: /profile name <full name>")
	}
	name := strings.TrimSpace(strings.TrimPrefix(cmd.rest, cmd.args[0]))
	_ = a.session.UpdateProfile(ctx, api.ProfileUpdate{FullName: name})
	return nil
}

func (a *app) avatar(ctx context.Context, cmd command) error {
	if len(cmd.args) != 1 {
		return errors.New("usage: /avatar <file>")
	}
	dataURL, err := imageDataURL(cmd.args[0])
	if err != nil {
		return err
	}
	_ = a.session.UpdateProfile(ctx, api.ProfileUpdate{ProfilePic: dataURL})
	return nil
}

func (a *app) users(ctx context.Context, cmd command) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	onlineOnly := len(cmd.args) > 0 && cmd.args[0] == "online"

	if err := a.conv.GetUsers(ctx); err != nil {
		return nil
	}
	presence := a.channel.Presence()
	contacts := a.conv.Contacts(onlineOnly, presence)
	if len(contacts) == 0 {
		if onlineOnly {
			a.printf("No contacts online.\n")
		} else {
			a.printf("No contacts yet.\n")
		}
		return nil
	}

	a.printf("Contacts (%d online):\n", a.conv.OnlineCount(presence))
	selected := a.conv.SelectedID()
	for _, u := range contacts {
		mark := dimColor.Sprint("○")
		if presence.IsOnline(u.ID) {
			mark = color.GreenString("●")
		}
		cursor := " "
		if u.ID == selected {
			cursor = ">"
		}
		a.printf("%s %s %-24s %s\n", cursor, mark, u.FullName, dimColor.Sprint(u.ID))
	}
	return nil
}

func (a *app) use(ctx context.Context, cmd command) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if cmd.rest == "" {
		return errors.New("usage: /use <id|name>")
	}

	if len(a.conv.State().Users) == 0 {
		if err := a.conv.GetUsers(ctx); err != nil {
			return nil
		}
	}
	contact, ok := findContact(a.conv.State().Users, cmd.rest)
	if !ok {
		return fmt.Errorf("no contact matches %q, try /users", cmd.rest)
	}

	// Stop live printing until the history is on screen
	a.mu.Lock()
	a.peerID = ""
	a.mu.Unlock()

	if err := a.conv.Open(ctx, contact); err != nil {
		return nil
	}

	a.mu.Lock()
	a.peerID = contact.ID
	a.printed = make(map[string]bool)
	a.mu.Unlock()

	status := dimColor.Sprint("offline")
	if a.channel.Presence().IsOnline(contact.ID) {
		status = color.GreenString("online")
	}
	a.printf("Now chatting with %s (%s)\n", peerColor.Sprint(contact.FullName), status)
	a.history()
	return nil
}

// reconnect reopens the push connection after the server dropped it. The
// conversation store re-subscribes the open conversation on its own.
func (a *app) reconnect(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if a.channel.Connected() {
		a.printf("Push channel already connected.\n")
		return nil
	}
	if err := a.session.ConnectSocket(ctx); err != nil {
		return fmt.Errorf("reconnecting: %w", err)
	}
	a.printf("Push channel reconnected.\n")
	return nil
}

func (a *app) closeConversation() {
	a.mu.Lock()
	a.peerID = ""
	a.printed = make(map[string]bool)
	a.mu.Unlock()

	a.conv.UnseeMessages()
	a.conv.SetSelectedUser(nil)
}

// history prints the whole conversation log and marks it shown.
func (a *app) history() {
	state := a.conv.State()
	if state.SelectedUser == nil {
		a.printf("No conversation open. Use /use <id|name> first.\n")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(state.Messages) == 0 {
		fmt.Fprintf(a.out, "%s\n", dimColor.Sprint("No messages yet. Say hi!"))
	}
	for _, m := range state.Messages {
		a.printed[m.ID] = true
		fmt.Fprint(a.out, a.formatLocked(m, *state.SelectedUser))
	}
}

func (a *app) image(ctx context.Context, cmd command) error {
	if len(cmd.args) < 1 {
		return errors.New("usage: /image <file> [caption]")
	}
	dataURL, err := imageDataURL(cmd.args[0])
	if err != nil {
		return err
	}
	caption := strings.TrimSpace(strings.TrimPrefix(cmd.rest, cmd.args[0]))
	return a.send(ctx, api.SendRequest{Text: caption, Image: dataURL})
}

func (a *app) send(ctx context.Context, req api.SendRequest) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	msg, err := a.conv.SendMessage(ctx, req)
	switch {
	case errors.Is(err, conversation.ErrNoConversation):
		return errors.New("no conversation open, use /use <id|name> first")
	case errors.Is(err, conversation.ErrEmptyMessage):
		return errors.New("nothing to send")
	case err != nil:
		return nil // reported by the notifier
	}

	state := a.conv.State()
	if state.SelectedUser == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.printed[msg.ID] {
		return nil
	}
	a.printed[msg.ID] = true
	fmt.Fprint(a.out, a.formatLocked(msg, *state.SelectedUser))
	return nil
}

// watch prints live messages from the open conversation as the store
// changes.
func (a *app) watch(ctx context.Context) {
	changes, id := a.conv.Subscribe(ctx)
	defer a.conv.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-changes:
			if !ok {
				return
			}
			a.printLive(state)
		}
	}
}

func (a *app) printLive(state conversation.State) {
	if state.SelectedUser == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if state.SelectedUser.ID != a.peerID {
		return
	}
	for _, m := range state.Messages {
		if a.printed[m.ID] || m.SenderID != a.peerID {
			continue
		}
		a.printed[m.ID] = true
		fmt.Fprint(a.out, "\r"+a.formatLocked(m, *state.SelectedUser))
	}
}

func (a *app) greet(ctx context.Context) {
	user := a.session.User()
	if user == nil {
		return
	}
	a.printf("Signed in as %s\n", selfColor.Sprint(user.FullName))
	if err := a.conv.GetUsers(ctx); err == nil {
		a.printf("%d contacts, /users to list them\n", len(a.conv.State().Users))
	}
}

func (a *app) prompt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.peerID == "" {
		fmt.Fprint(a.out, "> ")
		return
	}
	name := a.peerID
	if state := a.conv.State(); state.SelectedUser != nil && state.SelectedUser.FullName != "" {
		name = state.SelectedUser.FullName
	}
	fmt.Fprintf(a.out, "[%s]> ", name)
}

func (a *app) requireSession() error {
	if a.session.User() == nil {
		return errors.New("not signed in, use /login first")
	}
	return nil
}

// formatLocked renders one message line. Callers hold a.mu.
func (a *app) formatLocked(m api.Message, peer api.User) string {
	var b strings.Builder
	b.WriteString(dimColor.Sprintf("[%s] ", conversation.FormatMessageTime(m.CreatedAt)))
	if m.SenderID == a.session.UserID() {
		b.WriteString(selfColor.Sprint("you"))
	} else {
		name := peer.FullName
		if name == "" {
			name = m.SenderID
		}
		b.WriteString(peerColor.Sprint(name))
	}
	b.WriteString(": ")

	if m.Image != "" {
		b.WriteString(dimColor.Sprintf("[%s] ", describeImage(m.Image)))
	}
	if m.Text != "" {
		b.WriteString(indentContinuation(renderMarkdown(m.Text)))
	}
	b.WriteString("\n")
	return b.String()
}

func (a *app) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// findContact matches by exact id, then case-insensitive full name, then a
// unique name prefix.
func findContact(users []api.User, query string) (api.User, bool) {
	for _, u := range users {
		if u.ID == query {
			return u, true
		}
	}
	for _, u := range users {
		if strings.EqualFold(u.FullName, query) {
			return u, true
		}
	}

	var match api.User
	count := 0
	lower := strings.ToLower(query)
	for _, u := range users {
		if strings.HasPrefix(strings.ToLower(u.FullName), lower) {
			match = u
			count++
		}
	}
	return match, count == 1
}
