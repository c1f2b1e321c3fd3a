package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/disiqueira/gotree/v3"
	"golang.org/x/term"

	"github.com/sealdb/sealdb"
)

const usageText = `
Usage:
   sealdb -f <FILE> <ACTION> [FLAG] [ARG]

 ACTIONs:  create  collections  insert  find  update  delete  tree  compact  rekey

 Examples:
   sealdb -f app.sdb create
   sealdb -f app.sdb collections -new users
   sealdb -f app.sdb insert users '{"name":"ada","age":36}'
   sealdb -f app.sdb find users '{"age":{"$gte":21}}'
   sealdb -f app.sdb update users '{"name":"ada"}' '{"$inc":{"age":1}}'
   sealdb -f app.sdb delete -hard users '{"name":"ada"}'

 The passphrase is read from stdin, or from SEALDB_PASSPHRASE if set.

`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	flags := flag.NewFlagSet("sealdb", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usageText)
		flags.PrintDefaults()
	}

	var filename string
	var chacha bool
	flags.StringVar(&filename, "f", "", "Database file path (required)")
	flags.BoolVar(&chacha, "chacha", false, "Use ChaCha20-Poly1305 instead of AES-256-GCM when creating")
	flags.Parse(args)

	if filename == "" {
		fmt.Fprintln(errOut, "missing database file, use -f <FILE>")
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	action := flags.Arg(0)
	actionArgs := flags.Args()[1:]

	passphrase, err := readPassphrase(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "failed to read passphrase: %v\n", err)
		return 1
	}

	fsys := &osFS{}

	if action == "create" {
		opts := sealdb.DefaultOptions()
		if chacha {
			opts.Algorithm = sealdb.AlgorithmChaCha20Poly1305
		}
		store, err := sealdb.Create(fsys, filename, passphrase, opts)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		store.Close()
		fmt.Fprintf(out, "created %s\n", filename)
		return 0
	}

	store, err := sealdb.Open(fsys, filename, passphrase)
	if err != nil {
		if sealdb.IsIntegrityError(err) {
			fmt.Fprintln(errOut, "decryption failed: wrong passphrase or corrupted file")
		} else {
			fmt.Fprintln(errOut, err)
		}
		return 1
	}
	defer store.Close()

	if err := dispatch(store, action, actionArgs, out); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func dispatch(store *sealdb.Store, action string, args []string, out io.Writer) error {
	switch action {
	case "collections":
		return runCollections(store, args, out)
	case "insert":
		return runInsert(store, args, out)
	case "find":
		return runFind(store, args, out)
	case "update":
		return runUpdate(store, args, out)
	case "delete":
		return runDelete(store, args, out)
	case "tree":
		return runTree(store, out)
	case "compact":
		removed, err := store.Compact()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %d soft-deleted document(s)\n", removed)
		return nil
	case "rekey":
		newPassphrase, err := promptNewPassphrase()
		if err != nil {
			return err
		}
		if err := store.ChangeMasterKey(newPassphrase); err != nil {
			return err
		}
		fmt.Fprintln(out, "master key changed")
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func runCollections(store *sealdb.Store, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("collections", flag.ExitOnError)
	newName := flags.String("new", "", "Create a collection with this name")
	dropName := flags.String("drop", "", "Drop the collection with this name")
	flags.Parse(args)

	switch {
	case *newName != "":
		if err := store.CreateCollection(*newName); err != nil {
			return err
		}
		fmt.Fprintf(out, "created collection %s\n", *newName)
	case *dropName != "":
		if err := store.DropCollection(*dropName); err != nil {
			return err
		}
		fmt.Fprintf(out, "dropped collection %s\n", *dropName)
	default:
		names, err := store.ListCollections()
		if err != nil {
			return err
		}
		for _, name := range names {
			meta, err := store.CollectionMeta(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%d document(s)\n", name, meta.DocumentCount)
		}
	}
	return nil
}

func runInsert(store *sealdb.Store, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("insert", flag.ExitOnError)
	id := flags.String("id", "", "Document id (random UUID when omitted)")
	flags.Parse(args)
	if flags.NArg() != 2 {
		return fmt.Errorf("usage: insert [-id ID] <COLLECTION> <JSON>")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(flags.Arg(1)), &data); err != nil {
		return fmt.Errorf("invalid document JSON: %w", err)
	}

	doc, err := store.Insert(flags.Arg(0), *id, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "inserted %s\n", doc.ID)
	return nil
}

func runFind(store *sealdb.Store, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("find", flag.ExitOnError)
	skip := flags.Int("skip", 0, "Skip this many matches")
	limit := flags.Int("limit", 0, "Return at most this many matches (0 = all)")
	sortSpec := flags.String("sort", "", "Comma-separated sort fields, prefix with - for descending")
	project := flags.String("fields", "", "Comma-separated fields to include")
	deleted := flags.Bool("deleted", false, "Include soft-deleted documents")
	flags.Parse(args)
	if flags.NArg() < 1 || flags.NArg() > 2 {
		return fmt.Errorf("usage: find [FLAGS] <COLLECTION> [FILTER-JSON]")
	}

	opts := sealdb.FindOptions{
		Skip:           *skip,
		Limit:          *limit,
		IncludeDeleted: *deleted,
	}
	if flags.NArg() == 2 {
		var raw map[string]any
		if err := json.Unmarshal([]byte(flags.Arg(1)), &raw); err != nil {
			return fmt.Errorf("invalid filter JSON: %w", err)
		}
		filter, err := sealdb.ParseFilter(raw)
		if err != nil {
			return err
		}
		opts.Filter = filter
	}
	for _, field := range splitList(*sortSpec) {
		key := sealdb.SortKey{Field: field, Direction: 1}
		if strings.HasPrefix(field, "-") {
			key = sealdb.SortKey{Field: field[1:], Direction: -1}
		}
		opts.Sort = append(opts.Sort, key)
	}
	opts.Projection = splitList(*project)

	result, err := store.Find(flags.Arg(0), opts)
	if err != nil {
		return err
	}
	for _, doc := range result.Documents {
		line, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(line))
	}
	fmt.Fprintf(out, "%d of %d match(es), hasMore=%v\n", len(result.Documents), result.TotalCount, result.HasMore)
	return nil
}

func runUpdate(store *sealdb.Store, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("update", flag.ExitOnError)
	multi := flags.Bool("multi", false, "Update all matches instead of the first")
	flags.Parse(args)
	if flags.NArg() != 3 {
		return fmt.Errorf("usage: update [-multi] <COLLECTION> <FILTER-JSON> <UPDATE-JSON>")
	}

	filter, err := parseFilterArg(flags.Arg(1))
	if err != nil {
		return err
	}
	var rawUpdate map[string]any
	if err := json.Unmarshal([]byte(flags.Arg(2)), &rawUpdate); err != nil {
		return fmt.Errorf("invalid update JSON: %w", err)
	}
	update, err := sealdb.ParseUpdate(rawUpdate)
	if err != nil {
		return err
	}

	count, err := store.Update(flags.Arg(0), filter, update, *multi)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "updated %d document(s)\n", count)
	return nil
}

func runDelete(store *sealdb.Store, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("delete", flag.ExitOnError)
	multi := flags.Bool("multi", false, "Delete all matches instead of the first")
	hard := flags.Bool("hard", false, "Physically remove instead of marking deleted")
	flags.Parse(args)
	if flags.NArg() != 2 {
		return fmt.Errorf("usage: delete [-multi] [-hard] <COLLECTION> <FILTER-JSON>")
	}

	filter, err := parseFilterArg(flags.Arg(1))
	if err != nil {
		return err
	}
	count, err := store.Delete(flags.Arg(0), filter, *hard, *multi)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d document(s)\n", count)
	return nil
}

func runTree(store *sealdb.Store, out io.Writer) error {
	root := gotree.New(store.Filename())
	names, err := store.ListCollections()
	if err != nil {
		return err
	}
	for _, name := range names {
		meta, err := store.CollectionMeta(name)
		if err != nil {
			return err
		}
		branch := root.Add(fmt.Sprintf("%s (%d)", name, meta.DocumentCount))
		result, err := store.Find(name, sealdb.FindOptions{IncludeDeleted: true})
		if err != nil {
			return err
		}
		for _, doc := range result.Documents {
			label := doc.ID
			if doc.Meta.Deleted {
				label += " [deleted]"
			}
			branch.Add(label)
		}
	}
	fmt.Fprint(out, root.Print())
	return nil
}

func parseFilterArg(arg string) (*sealdb.Filter, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(arg), &raw); err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}
	return sealdb.ParseFilter(raw)
}

func splitList(spec string) []string {
	if spec == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(spec, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// readPassphrase reads the passphrase from SEALDB_PASSPHRASE or prompts for
// it without echo
func readPassphrase(errOut io.Writer) (string, error) {
	if env := os.Getenv("SEALDB_PASSPHRASE"); env != "" {
		return env, nil
	}
	fmt.Fprint(errOut, "Passphrase: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(errOut)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func promptNewPassphrase() (string, error) {
	fmt.Fprint(os.Stderr, "New passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}
