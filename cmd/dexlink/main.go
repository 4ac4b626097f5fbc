package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"dexlink.app/internal/catalog"
	"dexlink.app/internal/config"
	"dexlink.app/internal/eventlog"
	"dexlink.app/internal/metadata"
	"dexlink.app/internal/reconcile"
	"dexlink.app/internal/session"
	"dexlink.app/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "dexlink.yaml", "client config path")
		host       = flag.String("host", "", "server host:port (overrides config)")
		slot       = flag.String("slot", "", "slot name (overrides config)")
		password   = flag.String("password", "", "slot password (overrides config)")
		practice   = flag.Bool("practice", false, "run without a server connection")
		autoguess  = flag.Bool("autoguess", false, "debug: guess every eligible creature, then keep running")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[dexlink] ", log.LstdFlags|log.Lmicroseconds)

	conf, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *host != "" {
		conf.Server.Host = *host
	}
	if *slot != "" {
		conf.Server.Slot = *slot
	}
	if *password != "" {
		conf.Server.Password = *password
	}
	if *practice {
		conf.PracticeMode = true
	}
	conf.Normalize()
	if err := conf.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	_ = os.MkdirAll(conf.DataDir, 0o755)

	kv, err := storage.Open(filepath.Join(conf.DataDir, "dexlink.db"))
	if err != nil {
		logger.Fatalf("open storage: %v", err)
	}
	defer kv.Close()

	meta := metadata.Empty()
	if conf.DexPath != "" {
		m, err := metadata.Load(conf.DexPath)
		if err != nil {
			logger.Printf("dex metadata unavailable (%v), continuing without", err)
		} else {
			meta = m
			logger.Printf("dex metadata: %d creatures, digest %.12s", meta.Len(), meta.Digest())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	species, err := catalog.LoadOrFetch(ctx, kv, http.DefaultClient, conf.CatalogURL)
	cancel()
	if err != nil {
		logger.Fatalf("species catalog: %v", err)
	}
	logger.Printf("species catalog: %d entries", len(species))
	names := catalog.ByName(species)
	byID := catalog.ByID(species)

	journal := eventlog.NewJournal(conf.DataDir)
	defer journal.Close()

	var dial reconcile.Dialer
	if !conf.PracticeMode {
		creds := session.Credentials{
			Host:     conf.Server.Host,
			Slot:     conf.Server.Slot,
			Game:     conf.Server.Game,
			Password: conf.Server.Password,
		}
		dial = func(ev session.Events) reconcile.Transport {
			return session.New(creds, ev, logger)
		}
	}

	client := reconcile.New(reconcile.Options{
		Conf:    conf,
		Meta:    meta,
		Journal: journal,
		Names:   names,
		Logger:  logger,
		Dial:    dial,
	})
	defer client.Close()

	if conf.PracticeMode {
		logger.Printf("practice mode: no server connection")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := client.Connect(ctx)
		cancel()
		if err != nil {
			if _, terminal := err.(*session.AuthError); terminal {
				logger.Fatalf("login: %v", err)
			}
			// Transient failure: the retry controller reconnects on the
			// next guess.
			logger.Printf("connect: %v (will retry on demand)", err)
		}
	}

	if *autoguess {
		go func() {
			n := client.AutoGuessAll()
			logger.Printf("auto-guess complete: %d guesses", n)
		}()
	}

	lines := make(chan string)
	go readLines(lines)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case s := <-sig:
			logger.Printf("signal %v, shutting down", s)
			return
		case line, ok := <-lines:
			if !ok {
				<-sig
				return
			}
			handleLine(client, byID, logger, line)
		}
	}
}

// handleLine is the minimal interactive surface: a bare word is a
// guess, "/say" chats, "/hint N" spends a hint, "/stop" halts a
// running auto-guess sweep.
func handleLine(client *reconcile.Client, byID map[int]catalog.Species, logger *log.Logger, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	switch {
	case strings.HasPrefix(line, "/say "):
		if err := client.Say(strings.TrimPrefix(line, "/say ")); err != nil {
			logger.Printf("say: %v", err)
		}
	case strings.HasPrefix(line, "/hint "):
		dex, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/hint ")))
		if err != nil {
			logger.Printf("usage: /hint <dex>")
			return
		}
		if !client.UseHint(dex) {
			logger.Printf("no hint available for #%d", dex)
			return
		}
		logger.Printf("hint requested for %s", speciesName(byID, dex))
	case line == "/stop":
		client.StopAutoGuess()
	default:
		res, known := client.GuessName(line)
		if !known {
			logger.Printf("unknown species %q", line)
			return
		}
		switch {
		case res.Reconfirmed:
			logger.Printf("%s re-confirmed", line)
		case res.AlreadyChecked:
			logger.Printf("%s already caught", line)
		case res.OK:
			logger.Printf("%s caught", line)
		default:
			logger.Printf("%s blocked: %s", line, res.Reason)
		}
	}
}

func speciesName(byID map[int]catalog.Species, dex int) string {
	if sp, ok := byID[dex]; ok {
		return sp.Name
	}
	return fmt.Sprintf("#%d", dex)
}

func readLines(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
}
