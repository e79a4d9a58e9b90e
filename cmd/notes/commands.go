package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/pnotes/notes-core/internal/infrastructure/influxdb"
	"github.com/pnotes/notes-core/internal/infrastructure/logging"
	"github.com/pnotes/notes-core/internal/infrastructure/mqtt"
	"github.com/pnotes/notes-core/internal/notes"
	"github.com/pnotes/notes-core/internal/sqlite"
)

var (
	errNoCommand      = errors.New("no command given")
	errUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("wrong number of arguments")
	errMQTTDisabled   = errors.New("watch needs mqtt.enabled in the configuration")
)

// command is one subcommand of the shell.
type command struct {
	usage string
	args  int
	run   func(a *app, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"categories":      {"categories", 0, (*app).listCategories},
	"add-category":    {"add-category <pid> <name>", 2, (*app).addCategory},
	"rename-category": {"rename-category <id> <name>", 2, (*app).renameCategory},
	"delete-category": {"delete-category <id>", 1, (*app).deleteCategory},
	"path":            {"path <category-id>", 1, (*app).categoryPath},
	"notes":           {"notes <pid>", 1, (*app).listNotes},
	"add-note":        {"add-note <pid> <title> <description> <content>", 4, (*app).addNote},
	"show":            {"show <id>", 1, (*app).showNote},
	"move-note":       {"move-note <id> <pid>", 2, (*app).moveNote},
	"delete-note":     {"delete-note <id>", 1, (*app).deleteNote},
	"migrations":      {"migrations", 0, (*app).migrations},
	"status":          {"status", 0, (*app).status},
	"watch":           {"watch", 0, (*app).watch},
}

// app holds what the subcommands operate on.
type app struct {
	db         *sqlite.Database
	categories *notes.CategoryRepository
	notes      *notes.NoteRepository
	feed       *mqtt.Feed
	out        io.Writer
	log        *logging.Logger
}

// execute dispatches args[0] to its command.
func (a *app) execute(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownCommand, args[0])
	}
	if len(args)-1 != cmd.args {
		return fmt.Errorf("%w: usage: notes %s", errUsage, cmd.usage)
	}
	return cmd.run(a, ctx, args[1:])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: notes <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, name := range sortedCommands() {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func sortedCommands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (a *app) listCategories(ctx context.Context, _ []string) error {
	tree, err := a.categories.Tree(ctx)
	if err != nil {
		return err
	}
	var walk func(nodes []*notes.Node, depth int)
	walk = func(nodes []*notes.Node, depth int) {
		for _, n := range nodes {
			fmt.Fprintf(a.out, "%s[%d] %s\n", strings.Repeat("  ", depth), n.ID, n.Name)
			walk(n.Children, depth+1)
		}
	}
	walk(tree, 0)
	return nil
}

func (a *app) addCategory(ctx context.Context, args []string) error {
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	id, err := a.categories.Insert(ctx, pid, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) renameCategory(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return a.categories.Rename(ctx, id, args[1])
}

func (a *app) deleteCategory(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return a.categories.Delete(ctx, id)
}

func (a *app) categoryPath(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	names, err := a.categories.NamesChainFor(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, strings.Join(names, " / "))
	return nil
}

func (a *app) listNotes(ctx context.Context, args []string) error {
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	list, err := a.notes.ForCategory(ctx, pid)
	if err != nil {
		return err
	}
	for _, n := range list {
		if n.Description == "" {
			fmt.Fprintf(a.out, "[%d] %s\n", n.ID, n.Title)
			continue
		}
		fmt.Fprintf(a.out, "[%d] %s - %s\n", n.ID, n.Title, n.Description)
	}
	return nil
}

func (a *app) addNote(ctx context.Context, args []string) error {
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	n := &notes.Note{PID: pid, Title: args[1], Description: args[2], Content: args[3]}
	if err := a.notes.Save(ctx, n); err != nil {
		return err
	}
	fmt.Fprintln(a.out, n.ID)
	return nil
}

func (a *app) showNote(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	n, err := a.notes.WithID(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "id:          %d\n", n.ID)
	fmt.Fprintf(a.out, "category:    %d\n", n.PID)
	fmt.Fprintf(a.out, "title:       %s\n", n.Title)
	fmt.Fprintf(a.out, "description: %s\n", n.Description)
	fmt.Fprintf(a.out, "created:     %s\n", n.Created.Format(sqlite.DateTimeFormat))
	fmt.Fprintf(a.out, "updated:     %s\n", n.Updated.Format(sqlite.DateTimeFormat))
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, n.Content)
	return nil
}

func (a *app) moveNote(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	pid, err := parseID(args[1])
	if err != nil {
		return err
	}
	return a.notes.Move(ctx, id, pid)
}

func (a *app) deleteNote(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return a.notes.Delete(ctx, id)
}

func (a *app) migrations(ctx context.Context, _ []string) error {
	applied, pending, err := notes.MigrationStatus(ctx, a.db)
	if err != nil {
		return err
	}
	for _, m := range applied {
		fmt.Fprintf(a.out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(sqlite.DateTimeFormat))
	}
	for _, m := range pending {
		fmt.Fprintf(a.out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

func (a *app) status(ctx context.Context, _ []string) error {
	if err := a.db.HealthCheck(ctx); err != nil {
		return err
	}
	categories, notesCount, err := a.storeSize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "sqlite:     %s\n", sqlite.Version())
	fmt.Fprintf(a.out, "path:       %s\n", a.db.Path())
	fmt.Fprintf(a.out, "read-only:  %t\n", a.db.ReadOnly())
	fmt.Fprintf(a.out, "categories: %d\n", categories)
	fmt.Fprintf(a.out, "notes:      %d\n", notesCount)
	return nil
}

// watch prints change events from the MQTT feed until ctx is cancelled.
func (a *app) watch(ctx context.Context, _ []string) error {
	if a.feed == nil {
		return errMQTTDisabled
	}
	lines := make(chan string, 16)
	pattern := a.feed.Topics().AllChanges()
	err := a.feed.Watch(pattern, func(topic string, payload []byte) error {
		select {
		case lines <- fmt.Sprintf("%s %s", topic, payload):
		default:
			a.log.Warn("dropping change event, output is behind", "topic", topic)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer a.feed.Unwatch(pattern) //nolint:errcheck // Connection closes next

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			fmt.Fprintln(a.out, line)
		}
	}
}

func (a *app) storeSize(ctx context.Context) (categories, noteCount int64, err error) {
	res, err := a.db.Select(ctx,
		"SELECT (SELECT COUNT(*) FROM category) AS categories, (SELECT COUNT(*) FROM note) AS notes")
	if err != nil {
		return 0, 0, err
	}
	row, ok := res.First()
	if !ok {
		return 0, 0, nil
	}
	return row.Int64("categories"), row.Int64("notes"), nil
}

// recordStoreSize writes the category and note counts to InfluxDB.
func (a *app) recordStoreSize(ctx context.Context, telemetry *influxdb.Telemetry) {
	categories, noteCount, err := a.storeSize(ctx)
	if err != nil {
		a.log.Warn("measuring store size failed", "error", err)
		return
	}
	telemetry.RecordStoreSize(a.db.Path(), int(categories), int(noteCount))
}
