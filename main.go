package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"shikagraph/config"
	"shikagraph/core"
	"shikagraph/editor"
	"shikagraph/handlers/api/canvas"
	"shikagraph/handlers/api/documents"
	iconsapi "shikagraph/handlers/api/icons"
	"shikagraph/handlers/websocket"
	"shikagraph/icons"
	"shikagraph/scene"
	"shikagraph/stores"
)

func allowLocalOrigin(r *http.Request, origin string) bool {
	if origin == "" {
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https":
		switch parsed.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	case "tauri":
		return parsed.Hostname() == "localhost"
	}
	return false
}

func setupRouter(reg *editor.Registry, documentStore core.DocumentStore, assetsDir string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"tauri://localhost"},
		AllowOriginFunc:  allowLocalOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/canvases", func(r chi.Router) {
			canvas.Routes(r, reg, documentStore)
		})
		r.Route("/documents", func(r chi.Router) {
			documents.Routes(r, documentStore)
		})
		r.Route("/icons", func(r chi.Router) {
			r.Get("/", iconsapi.HandleList(reg.Catalog()))
			r.Get("/categories", iconsapi.HandleCategories())
			r.Get("/{id}", iconsapi.HandleGet(reg.Catalog()))
		})
		r.Get("/viewers", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, websocket.GetActiveCanvases())
		})
	})

	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(assetsDir))))
	return r
}

// expireSessions drops idle canvases until ctx is done.
func expireSessions(ctx context.Context, reg *editor.Registry, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.Expire(ttl)
		}
	}
}

func waitForShutdown(srv *http.Server, ioo *socketio.Server, cancel context.CancelFunc) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down")

	cancel()
	ioo.Close(nil)

	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
}

func main() {
	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", ":3002", "Set the server listen address")
	envFile := flag.String("env", ".env", "Optional file of environment settings")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load(*envFile)
	ctx, cancel := context.WithCancel(context.Background())

	catalog := icons.NewCatalog()
	// Load falls back to the built-in icons and logs the failure.
	_ = catalog.Load(ctx, cfg.IconsSource)

	reg := editor.NewRegistry(catalog, editor.Options{
		Width:        cfg.CanvasWidth,
		Height:       cfg.CanvasHeight,
		Assets:       scene.NewDirAssets(cfg.AssetsDir),
		HistoryLimit: cfg.HistoryLimit,
	})
	if cfg.SessionTTL > 0 {
		go expireSessions(ctx, reg, cfg.SessionTTL)
	}

	documentStore := stores.GetStore(ctx, cfg)

	r := setupRouter(reg, documentStore, cfg.AssetsDir)
	ioo := websocket.SetupSocketIO(reg)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	srv := &http.Server{Addr: *listenAddr, Handler: r}
	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, ioo, cancel)
}
