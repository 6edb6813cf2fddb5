package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"inkwell/pkg/backend"
	"inkwell/pkg/book"
	"inkwell/pkg/importer"
	"inkwell/pkg/server"
	"inkwell/pkg/store"
	"inkwell/pkg/utils"
)

func main() {
	cmd := &cli.Command{
		Name:  "inkwell",
		Usage: "Manuscript authoring tool with model-assisted summaries, critiques, and narration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Usage:   "Path to the data directory",
				Value:   "data",
				Sources: cli.EnvVars("INKWELL_DATA"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Value:   ":8080",
						Sources: cli.EnvVars("INKWELL_ADDR"),
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Import a manuscript file into a book",
				ArgsUsage: "<book> <file>",
				Action:    importFile,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal("inkwell exited", "err", err)
	}
}

func open(cmd *cli.Command) (*store.Store, *backend.Set, error) {
	s, err := store.New(cmd.String("data"))
	if err != nil {
		return nil, nil, err
	}

	settings := backend.Settings{}
	if utils.Exists(s.SettingsPath()) {
		loaded, err := utils.Load[backend.Settings](s.SettingsPath())
		if err != nil {
			return nil, nil, fmt.Errorf("load settings: %w", err)
		}
		settings = loaded
	} else {
		// Write a disabled template so authors have something to fill in.
		settings = backend.Settings{GenAI: []backend.Provider{
			{Type: backend.ProviderOpenAI, Role: backend.RoleContent, Model: "gpt-4o", MaxTokens: 4096},
		}}
		if err := utils.Save(s.SettingsPath(), settings); err != nil {
			return nil, nil, fmt.Errorf("write default settings: %w", err)
		}
		log.Warn("wrote default settings, generative features disabled until configured", "path", s.SettingsPath())
	}

	set, err := backend.BuildSet(context.Background(), settings)
	if err != nil {
		return nil, nil, err
	}
	return s, set, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	s, set, err := open(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(book.NewLibrary(s, set))

	watcher, err := store.NewWatcher(s, srv.Invalidate)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	go watcher.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cmd.String("addr"))
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func importFile(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("usage: inkwell import <book> <file>")
	}
	title, path := cmd.Args().Get(0), cmd.Args().Get(1)

	s, set, err := open(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	chapters, err := importer.Read(path, data)
	if err != nil {
		return err
	}

	b, err := book.Open(s, set, title)
	if errors.Is(err, book.ErrNotFound) {
		b, err = book.Create(s, set, title)
	}
	if err != nil {
		return err
	}

	for _, chapter := range chapters {
		added, err := b.Append(chapter.Name, chapter.Content)
		if err != nil {
			return err
		}
		log.Info("chapter imported", "book", title, "number", added.Number, "name", chapter.Name)
	}
	log.Info("import finished", "book", title, "chapters", len(chapters))
	return nil
}
