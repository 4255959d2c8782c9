package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL drives. App satisfies it;
// tests use a recording stub.
type execIface interface {
	isLoggedIn() bool
	needsLogin() bool
	prompt() string

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context) error

	Posts(ctx context.Context) error
	MyPosts(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Create(ctx context.Context) error
	Edit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error

	Comment(ctx context.Context, postID string) error
	Uncomment(ctx context.Context, postID, commentID string) error

	Theme(ctx context.Context, mode string) error
	Stats(ctx context.Context) error
	Reset(ctx context.Context) error
}

const (
	helpAnonymous = "Available commands: register, login, posts, show <id>, theme [light|dark], stats, reset, exit"
	helpLoggedIn  = "Available commands: posts, mine, show <id>, create, edit <id>, delete <id>, " +
		"comment <postID>, uncomment <postID> <commentID>, whoami, profile, theme [light|dark], stats, reset, logout, exit"
)

// protected lists commands that need a session; the REPL asks for a login
// before running them.
var protected = map[string]bool{
	"mine":      true,
	"create":    true,
	"edit":      true,
	"delete":    true,
	"comment":   true,
	"uncomment": true,
	"profile":   true,
}

// usage holds the minimum argument count and help text of commands that
// take arguments.
var usage = map[string]struct {
	args int
	text string
}{
	"show":      {1, "Usage: show <id>"},
	"edit":      {1, "Usage: edit <id>"},
	"delete":    {1, "Usage: delete <id>"},
	"comment":   {1, "Usage: comment <postID>"},
	"uncomment": {2, "Usage: uncomment <postID> <commentID>"},
}

// runREPL reads commands from reader until EOF or "exit"/"quit".
//
// Before each prompt it checks whether a 401 dropped the session and, if
// so, starts a login. Errors returned by handlers are not printed here;
// handlers report to the user themselves.
func runREPL(ctx context.Context, a execIface, w io.Writer, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		if a.needsLogin() {
			_ = a.Login(ctx)
		}

		fmt.Fprint(w, a.prompt())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(w)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if u, ok := usage[cmd]; ok && len(args) < u.args {
			fmt.Fprintln(w, u.text)
			continue
		}

		if protected[cmd] && !a.isLoggedIn() {
			fmt.Fprintln(w, "Please log in first.")
			if err := a.Login(ctx); err != nil || !a.isLoggedIn() {
				continue
			}
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, helpLoggedIn)
			} else {
				fmt.Fprintln(w, helpAnonymous)
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "profile":
			_ = a.Profile(ctx)

		case "posts", "ls":
			_ = a.Posts(ctx)

		case "mine":
			_ = a.MyPosts(ctx)

		case "show":
			_ = a.Show(ctx, args[0])

		case "create":
			_ = a.Create(ctx)

		case "edit":
			_ = a.Edit(ctx, args[0])

		case "delete":
			_ = a.Delete(ctx, args[0])

		case "comment":
			_ = a.Comment(ctx, args[0])

		case "uncomment":
			_ = a.Uncomment(ctx, args[0], args[1])

		case "theme":
			mode := ""
			if len(args) > 0 {
				mode = args[0]
			}
			_ = a.Theme(ctx, mode)

		case "stats":
			_ = a.Stats(ctx)

		case "reset":
			_ = a.Reset(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			// last line had no newline
			return
		}
	}
}
