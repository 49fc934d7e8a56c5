// Command dayonme-personas inspects and clears anonymous persona assignments in the configured kv store
//
//	dayonme-personas list <scopeId>
//	dayonme-personas get [-mode stable|perInstance] [-comment id] <scopeId> <userId>
//	dayonme-personas clear <scopeId>
//	dayonme-personas clear-all -yes
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"dayonme/internal/platform/config"
	"dayonme/internal/platform/kv"
	"dayonme/internal/platform/logger"
	"dayonme/internal/platform/store"
	personadom "dayonme/internal/services/persona/domain"
	personarepo "dayonme/internal/services/persona/repo"
	personasvc "dayonme/internal/services/persona/service"

	"github.com/joho/godotenv"
)

var errUsage = errors.New("usage: dayonme-personas list|get|clear|clear-all ...")

func main() {
	_ = godotenv.Load()
	root := config.New()
	l := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(ctx, store.FromEnv(root, "dayonme-personas"), store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() { _ = st.Close() }()

	kvs, codec, err := kv.Open(ctx, kv.FromEnv(root), st)
	if err != nil {
		l.Fatal().Err(err).Msg("kv.Open failed")
	}

	alloc := personasvc.New(personarepo.NewKV(kvs, codec), personasvc.Config{})
	if err := run(ctx, alloc, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(ctx context.Context, a personadom.ServicePort, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		scope, err := scopeArg(args[1:])
		if err != nil {
			return err
		}
		as, err := a.GetAllForScope(ctx, scope)
		if err != nil {
			return err
		}
		return printTable(out, as)

	case "get":
		fs := flag.NewFlagSet("get", flag.ContinueOnError)
		fs.SetOutput(out)
		mode := fs.String("mode", string(personadom.ModeStable), "stable or perInstance")
		comment := fs.Int64("comment", 0, "comment id for perInstance mode")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return errUsage
		}
		scope, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("scopeId: %w", err)
		}
		user, err := strconv.ParseInt(fs.Arg(1), 10, 64)
		if err != nil {
			return fmt.Errorf("userId: %w", err)
		}
		var cid *int64
		if *comment != 0 {
			cid = comment
		}
		as, err := a.Resolve(ctx, scope, user, personadom.Mode(*mode), cid)
		if err != nil {
			return err
		}
		return printTable(out, []personadom.Assignment{as})

	case "clear":
		scope, err := scopeArg(args[1:])
		if err != nil {
			return err
		}
		if err := a.ClearScope(ctx, scope); err != nil {
			return err
		}
		fmt.Fprintf(out, "cleared scope %d\n", scope)
		return nil

	case "clear-all":
		fs := flag.NewFlagSet("clear-all", flag.ContinueOnError)
		fs.SetOutput(out)
		yes := fs.Bool("yes", false, "confirm wiping every scope")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if !*yes {
			return errors.New("clear-all needs -yes")
		}
		if err := a.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "cleared all scopes")
		return nil
	}
	return errUsage
}

func scopeArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("scopeId: %w", err)
	}
	return n, nil
}

func printTable(out io.Writer, as []personadom.Assignment) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tIDENTITY\tNICKNAME\tICON\tCOLOR\tASSIGNED")
	for _, x := range as {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", x.ScopeID, x.IdentityKey, x.Nickname, x.Icon, x.Color, x.AssignedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
