package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yshare/yshare/internal/bridge"
	"github.com/yshare/yshare/internal/domain"
	"github.com/yshare/yshare/pkg/logger"
)

const usage = `usage: yshare-bridge [-config PATH] [-backend URL] COMMAND

commands:
  run                       connect, rejoin the stored room, stream notifications
  create                    create a room and join it
  join CODE                 join an existing room
  leave                     leave the current room
  share -url URL [-title T] [-comment C]
  history [-reload]         print the local history cache
`

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to bridge config file")
	backend := flag.String("backend", "", "backend URL override")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logger.Init(logger.Config{Service: "yshare-bridge", Version: "v0.1.0", Backend: logger.BackendStd})

	cfg, err := bridge.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := bridge.OpenStore(cfg.StatePath)
	if err != nil {
		log.Fatalf("open state: %v", err)
	}
	if *backend != "" {
		if err := store.SetBackendURL(*backend); err != nil {
			log.Fatalf("set backend: %v", err)
		}
	}

	b := bridge.New(store, bridge.LogNotifier{}, cfg.BackendURL)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch flag.Arg(0) {
	case "run":
		runDaemon(b, store)
	case "create":
		code, err := b.CreateRoom(ctx)
		if err != nil {
			log.Fatalf("create: %v", err)
		}
		if err := b.Join(ctx, code); err != nil {
			log.Fatalf("join: %v", err)
		}
		fmt.Println(code)
	case "join":
		code := flag.Arg(1)
		if code == "" {
			log.Fatal("join: room code required")
		}
		if err := b.Join(ctx, code); err != nil {
			if err == domain.ErrRoomNotFound {
				log.Fatalf("join: room %s not found", code)
			}
			log.Fatalf("join: %v", err)
		}
		fmt.Printf("joined %s\n", code)
	case "leave":
		if err := b.Leave(); err != nil {
			log.Fatalf("leave: %v", err)
		}
	case "share":
		shareCmd(ctx, b, store, flag.Args()[1:])
	case "history":
		historyCmd(ctx, b, store, flag.Args()[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runDaemon(b *bridge.Bridge, store *bridge.Store) {
	if store.RoomCode() == "" {
		log.Fatal("run: no room joined, use 'join CODE' first")
	}
	if err := b.Start(); err != nil {
		log.Fatalf("run: %v", err)
	}
	defer b.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

func shareCmd(ctx context.Context, b *bridge.Bridge, store *bridge.Store, args []string) {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	videoURL := fs.String("url", "", "video URL (required)")
	title := fs.String("title", "", "video title")
	comment := fs.String("comment", "", "comment")
	_ = fs.Parse(args)

	if *videoURL == "" {
		log.Fatal("share: -url is required")
	}

	if err := b.Start(); err != nil {
		log.Fatalf("share: %v", err)
	}
	defer b.Close()

	err := b.Share(domain.Share{
		RoomCode: store.RoomCode(),
		VideoURL: *videoURL,
		Title:    *title,
		Comment:  *comment,
	})
	if err != nil {
		log.Fatalf("share: %v", err)
	}
}

func historyCmd(ctx context.Context, b *bridge.Bridge, store *bridge.Store, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	reload := fs.Bool("reload", false, "refresh from the backend first")
	_ = fs.Parse(args)

	if *reload {
		if err := b.ReloadHistory(ctx); err != nil {
			log.Fatalf("history: %v", err)
		}
	}
	for _, e := range store.History() {
		ts := time.Unix(e.Timestamp, 0).Format(time.RFC3339)
		fmt.Printf("%s  [%s]  %s  %s\n", ts, e.Sender, e.VideoURL, e.Title)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "yshare.yaml"
	}
	return filepath.Join(home, ".yshare", "config.yaml")
}
