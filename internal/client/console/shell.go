package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/atinyakov/tavola/internal/client/monitor"
	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
)

const helpText = `Commands:
  login                 sign in
  whoami                show the signed-in account
  logout                sign out
  categories            list categories
  dishes                list dishes
  add-dish              create a dish
  delete-dish <id>      delete a dish
  menu                  list menu items
  add-menu-item         create a menu item
  delete-menu-item <id> delete a menu item
  settings              list settings
  set <key> <value>     write a setting
  help                  show this help
  exit                  quit`

// API is the admin API used by the shell. *Client implements it.
type API interface {
	Login(ctx context.Context, username, password string) (*models.UserSummary, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (*models.UserSummary, error)
	Policy(ctx context.Context) (*Policy, error)
	Dishes(ctx context.Context) ([]models.Dish, error)
	CreateDish(ctx context.Context, in DishInput) (*models.Dish, error)
	DeleteDish(ctx context.Context, id string) error
	MenuItems(ctx context.Context) ([]models.MenuItem, error)
	CreateMenuItem(ctx context.Context, in MenuItemInput) (*models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]models.Category, error)
	Settings(ctx context.Context) ([]models.Setting, error)
	SetSetting(ctx context.Context, key, value string) (*models.Setting, error)
}

// Shell is the admin REPL. While signed in an inactivity monitor runs and
// signs the operator out before the server does.
type Shell struct {
	api    API
	prompt *Prompter
	out    io.Writer

	// MonitorOptions are passed to every monitor the shell starts.
	MonitorOptions []monitor.Option

	mu          sync.Mutex
	user        *models.UserSummary
	mon         *monitor.Monitor
	monitorCtx  context.Context
	stopMonitor context.CancelFunc
	monitorDone chan struct{}
}

// NewShell wires a shell. Input lines read by prompt count as activity.
func NewShell(api API, prompt *Prompter, out io.Writer) *Shell {
	s := &Shell{api: api, prompt: prompt, out: &lockedWriter{w: out}}
	prompt.OnInput = s.touch
	return s
}

// Run reads commands until exit, end of input or ctx cancellation.
func (s *Shell) Run(ctx context.Context) {
	defer s.stop()
	for ctx.Err() == nil {
		fmt.Fprint(s.out, s.promptLabel())
		line, ok := s.prompt.Line()
		if !ok {
			return
		}
		if quit := s.Exec(ctx, strings.Fields(line)); quit {
			return
		}
	}
}

func (s *Shell) promptLabel() string {
	if u := s.currentUser(); u != nil {
		return "tavola(" + u.Username + ")> "
	}
	return "tavola> "
}

// Exec runs one command and reports whether the shell should quit.
func (s *Shell) Exec(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "exit", "quit":
		fmt.Fprintln(s.out, "Bye")
		return true
	case "login":
		s.login(ctx)
	default:
		if s.currentUser() == nil {
			fmt.Fprintln(s.out, "Not signed in. Type 'login' first.")
			return false
		}
		s.adminCommand(ctx, args)
	}
	return false
}

func (s *Shell) adminCommand(ctx context.Context, args []string) {
	var err error
	switch args[0] {
	case "whoami":
		var u *models.UserSummary
		if u, err = s.api.Session(ctx); err == nil {
			fmt.Fprintf(s.out, "%s <%s>\n", u.Username, u.Email)
		}
	case "logout":
		s.logout(ctx)
		fmt.Fprintln(s.out, "Logged out")
	case "categories":
		var list []models.Category
		if list, err = s.api.Categories(ctx); err == nil {
			s.table("ID\tNAME\tSLUG", len(list), func(i int) string {
				return fmt.Sprintf("%s\t%s\t%s", list[i].ID, list[i].Name, list[i].Slug)
			})
		}
	case "dishes":
		var list []models.Dish
		if list, err = s.api.Dishes(ctx); err == nil {
			s.table("ID\tTITLE\tCATEGORY", len(list), func(i int) string {
				return fmt.Sprintf("%s\t%s\t%s", list[i].ID, list[i].Title, list[i].CategoryID)
			})
		}
	case "add-dish":
		var d *models.Dish
		if d, err = s.api.CreateDish(ctx, s.prompt.PromptDish()); err == nil {
			fmt.Fprintf(s.out, "Dish created: %s\n", d.ID)
		}
	case "delete-dish":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: delete-dish <id>")
			return
		}
		if err = s.api.DeleteDish(ctx, args[1]); err == nil {
			fmt.Fprintln(s.out, "Dish deleted")
		}
	case "menu":
		var list []models.MenuItem
		if list, err = s.api.MenuItems(ctx); err == nil {
			s.table("ID\tSECTION\tNAME\tPRICE\tAVAILABLE", len(list), func(i int) string {
				m := list[i]
				return fmt.Sprintf("%s\t%s\t%s\t%.2f\t%t", m.ID, m.Section, m.Name, m.Price, m.Available)
			})
		}
	case "add-menu-item":
		var in MenuItemInput
		if in, err = s.prompt.PromptMenuItem(); err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		var m *models.MenuItem
		if m, err = s.api.CreateMenuItem(ctx, in); err == nil {
			fmt.Fprintf(s.out, "Menu item created: %s\n", m.ID)
		}
	case "delete-menu-item":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: delete-menu-item <id>")
			return
		}
		if err = s.api.DeleteMenuItem(ctx, args[1]); err == nil {
			fmt.Fprintln(s.out, "Menu item deleted")
		}
	case "settings":
		var list []models.Setting
		if list, err = s.api.Settings(ctx); err == nil {
			s.table("KEY\tVALUE", len(list), func(i int) string {
				return list[i].Key + "\t" + list[i].Value
			})
		}
	case "set":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "Usage: set <key> <value>")
			return
		}
		if _, err = s.api.SetSetting(ctx, args[1], strings.Join(args[2:], " ")); err == nil {
			fmt.Fprintln(s.out, "Setting saved")
		}
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	s.report(err)
}

func (s *Shell) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, common.ErrUnauthenticated):
		s.stop()
		s.setUser(nil)
		fmt.Fprintln(s.out, "Session is no longer valid. Please log in again.")
	default:
		fmt.Fprintln(s.out, "Error:", err)
	}
}

func (s *Shell) table(header string, n int, row func(i int) string) {
	if n == 0 {
		fmt.Fprintln(s.out, "(none)")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for i := 0; i < n; i++ {
		fmt.Fprintln(tw, row(i))
	}
	_ = tw.Flush()
}

func (s *Shell) login(ctx context.Context) {
	if s.currentUser() != nil {
		s.logout(ctx)
	}
	username := s.prompt.Ask("Username")
	password, err := s.prompt.AskPassword("Password")
	if err != nil {
		fmt.Fprintln(s.out, "Error:", err)
		return
	}
	user, err := s.api.Login(ctx, username, password)
	if err != nil {
		fmt.Fprintln(s.out, "Login failed:", err)
		return
	}
	policy, err := s.api.Policy(ctx)
	if err != nil {
		fmt.Fprintln(s.out, "Error:", err)
		_ = s.api.Logout(ctx)
		return
	}
	s.setUser(user)
	s.start(ctx, policy)
	fmt.Fprintf(s.out, "Welcome, %s. Sessions end after %s without input.\n", user.Username, policy.Timeout())
}

// logout ends the session locally and on the server. Server errors are ignored.
func (s *Shell) logout(ctx context.Context) {
	s.stop()
	_ = s.api.Logout(ctx)
	s.setUser(nil)
}

func (s *Shell) start(ctx context.Context, p *Policy) {
	mon := monitor.New(p.Timeout(), p.Warning(), monitor.Callbacks{
		Countdown: func(remaining time.Duration) {
			fmt.Fprintf(s.out, "\rSession expires in %ds, press Enter to stay signed in. ", int(remaining.Round(time.Second)/time.Second))
		},
		Extended: func() {
			fmt.Fprintln(s.out, "Session extended.")
		},
		Logout: s.api.Logout,
		Expired: func() {
			s.setUser(nil)
			fmt.Fprintln(s.out, "\nSession expired due to inactivity. Please log in again.")
			fmt.Fprint(s.out, s.promptLabel())
		},
	}, s.MonitorOptions...)

	monCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.mon, s.monitorCtx, s.stopMonitor, s.monitorDone = mon, monCtx, cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		mon.Run(monCtx)
	}()
}

// stop cancels the running monitor and waits for it to return.
func (s *Shell) stop() {
	s.mu.Lock()
	cancel, done := s.stopMonitor, s.monitorDone
	s.mon, s.monitorCtx, s.stopMonitor, s.monitorDone = nil, nil, nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// touch is called for every input line. While signed in it slides the server
// session first and only then resets the monitor, so the local countdown
// never runs behind the server window.
func (s *Shell) touch() {
	s.mu.Lock()
	mon, ctx, user := s.mon, s.monitorCtx, s.user
	s.mu.Unlock()
	if mon == nil || user == nil {
		return
	}
	if _, err := s.api.Session(ctx); err != nil {
		if errors.Is(err, common.ErrUnauthenticated) {
			s.report(err)
			return
		}
		fmt.Fprintln(s.out, "Error: session not refreshed:", err)
		return
	}
	mon.Touch()
}

func (s *Shell) currentUser() *models.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Shell) setUser(u *models.UserSummary) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// lockedWriter serializes writes from the command loop and the monitor.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
