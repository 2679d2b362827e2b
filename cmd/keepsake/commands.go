package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"keepsake/internal/store"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// document is a free-form JSON object keyed by its "id" member.
type document map[string]any

func (d document) ID() string {
	id, _ := d["id"].(string)
	return id
}

var errNotFound = errors.New("not found")

func registerCommands(reg *CommandRegistry) {
	reg.Register("put", Command{
		Usage:   "put <ns> <json>...",
		Help:    "save documents; a missing id is generated",
		MinArgs: 2, MaxArgs: -1,
		Handler: handlePut,
	})
	reg.Register("get", Command{
		Usage:   "get <ns> <id>...",
		Help:    "print documents by id",
		MinArgs: 2, MaxArgs: -1,
		Handler: handleGet,
	})
	reg.Register("list", Command{
		Usage:   "list <ns>",
		Help:    "print every document, ordered by id",
		MinArgs: 1, MaxArgs: 1,
		Handler: handleList,
	})
	reg.Register("count", Command{
		Usage:   "count <ns>",
		Help:    "print the number of documents",
		MinArgs: 1, MaxArgs: 1,
		Handler: handleCount,
	})
	reg.Register("del", Command{
		Usage:   "del <ns> <id>...",
		Help:    "delete documents by id",
		MinArgs: 2, MaxArgs: -1,
		Handler: handleDel,
	})
	reg.Register("clear", Command{
		Usage:   "clear <ns>",
		Help:    "drop the whole namespace",
		MinArgs: 1, MaxArgs: 1,
		Handler: handleClear,
	})
	reg.Register("snapshot", Command{
		Usage:   "snapshot <ns> [file]",
		Help:    "export a snapshot as JSON to file or stdout",
		MinArgs: 1, MaxArgs: 2,
		Handler: handleSnapshot,
	})
	reg.Register("restore", Command{
		Usage:   "restore <ns> <file>",
		Help:    "replace the namespace with a snapshot file",
		MinArgs: 2, MaxArgs: 2,
		Handler: handleRestore,
	})
	reg.Register("slot-set", Command{
		Usage:   "slot-set <ns> <json>",
		Help:    "store a single JSON value",
		MinArgs: 2, MaxArgs: 2,
		Handler: handleSlotSet,
	})
	reg.Register("slot-get", Command{
		Usage:   "slot-get <ns>",
		Help:    "print the single stored value",
		MinArgs: 1, MaxArgs: 1,
		Handler: handleSlotGet,
	})
	reg.Register("slot-del", Command{
		Usage:   "slot-del <ns>",
		Help:    "clear the single stored value",
		MinArgs: 1, MaxArgs: 1,
		Handler: handleSlotDel,
	})
	reg.Register("help", Command{
		Help:    "show this list",
		MaxArgs: 0,
		Handler: func(ctx CommandContext) error {
			_, err := io.WriteString(ctx.Out, reg.HelpText())
			return err
		},
	})
}

func openDocuments(ctx CommandContext) (*store.Collection[string, document], error) {
	return store.NewCollection[string, document](ctx.Store, ctx.Args[0])
}

func openSlot(ctx CommandContext) (*store.Slot[any], error) {
	return store.NewSlot[any](ctx.Store, ctx.Args[0])
}

func handlePut(ctx CommandContext) error {
	docs := make([]document, 0, len(ctx.Args)-1)
	for i, raw := range ctx.Args[1:] {
		doc, err := parseDocument(raw)
		if err != nil {
			return fmt.Errorf("document %d: %w", i+1, err)
		}
		docs = append(docs, doc)
	}
	c, err := openDocuments(ctx)
	if err != nil {
		return err
	}
	if err := c.SaveMany(docs...); err != nil {
		return err
	}
	for _, d := range docs {
		_, _ = fmt.Fprintln(ctx.Out, d.ID())
	}
	return nil
}

// parseDocument decodes one JSON object and fills in a random id when none
// is given.
func parseDocument(raw string) (document, error) {
	var doc document
	if err := gojson.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	switch id := doc["id"].(type) {
	case nil:
		doc["id"] = uuid.NewString()
	case string:
		if id == "" {
			doc["id"] = uuid.NewString()
		}
	default:
		return nil, fmt.Errorf("id must be a string, got %T", id)
	}
	return doc, nil
}

func handleGet(ctx CommandContext) error {
	c, err := openDocuments(ctx)
	if err != nil {
		return err
	}
	var missing []string
	for _, id := range ctx.Args[1:] {
		doc, ok := c.Object(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		if err := writeJSON(ctx, doc); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errNotFound, strings.Join(missing, ", "))
	}
	return nil
}

func handleList(ctx CommandContext) error {
	c, err := openDocuments(ctx)
	if err != nil {
		return err
	}
	docs := c.AllObjects()
	slices.SortFunc(docs, func(a, b document) int { return strings.Compare(a.ID(), b.ID()) })
	return writeJSON(ctx, docs)
}

func handleCount(ctx CommandContext) error {
	c, err := openDocuments(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Out, c.Count())
	return err
}

func handleDel(ctx CommandContext) error {
	c, err := openDocuments(ctx)
	if err != nil {
		return err
	}
	return c.DeleteMany(ctx.Args[1:]...)
}

func handleClear(ctx CommandContext) error {
	c, err := openDocuments(ctx)
	if err != nil {
		return err
	}
	return c.DeleteAll()
}

func handleSnapshot(ctx CommandContext) error {
	c, err := openDocuments(ctx)
	if err != nil {
		return err
	}
	snap, err := c.GenerateSnapshot()
	if err != nil {
		return err
	}
	if len(ctx.Args) == 1 {
		return writeJSON(ctx, snap)
	}
	data, err := gojson.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(ctx.Args[1], append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	_, _ = fmt.Fprintf(ctx.Out, "wrote %d documents to %s\n", len(snap.Objects), ctx.Args[1])
	return nil
}

func handleRestore(ctx CommandContext) error {
	data, err := os.ReadFile(ctx.Args[1])
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap store.Snapshot[document]
	if err := gojson.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	c, err := openDocuments(ctx)
	if err != nil {
		return err
	}
	if err := c.RestoreSnapshot(snap); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(ctx.Out, "restored %d documents into %s\n", c.Count(), c.Namespace())
	return nil
}

func handleSlotSet(ctx CommandContext) error {
	var v any
	if err := gojson.Unmarshal([]byte(ctx.Args[1]), &v); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	s, err := openSlot(ctx)
	if err != nil {
		return err
	}
	return s.Save(v)
}

func handleSlotGet(ctx CommandContext) error {
	s, err := openSlot(ctx)
	if err != nil {
		return err
	}
	v, ok := s.Object()
	if !ok {
		return fmt.Errorf("%w: slot %s is empty", errNotFound, s.Namespace())
	}
	return writeJSON(ctx, v)
}

func handleSlotDel(ctx CommandContext) error {
	s, err := openSlot(ctx)
	if err != nil {
		return err
	}
	return s.Delete()
}

func writeJSON(ctx CommandContext, v any) error {
	enc := gojson.NewEncoder(ctx.Out)
	if ctx.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
