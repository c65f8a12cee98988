package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"cardforge/assets"
	"cardforge/export"
	apiassets "cardforge/handlers/api/assets"
	"cardforge/handlers/api/cards"
	"cardforge/handlers/api/deliveries"
	"cardforge/handlers/auth"
	authMiddleware "cardforge/middleware"
	"cardforge/render"
	"cardforge/stores"
)

func setupRouter(store stores.Store, storage assets.Storage, exporter *export.Exporter) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/v2", func(r chi.Router) {
		// Card management, protected by JWT auth
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Route("/cards", func(r chi.Router) {
				r.Post("/", cards.HandleCreateCard(store))
				r.Get("/", cards.HandleListCards(store))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cards.HandleGetCard(store))
					r.Delete("/", cards.HandleDeleteCard(store))
					r.Get("/design", cards.HandleGetDesign(store))
					r.Put("/design", cards.HandleSaveDesign(store))
					r.Post("/assets", apiassets.HandleUploadAsset(store, storage))
					r.Post("/assets/sign", apiassets.HandleSignAsset(store, storage))
					r.Post("/deliver", deliveries.HandleDeliverCard(store, exporter))
				})
			})
		})

		// Public recipient endpoint, no auth
		r.Get("/viewer/{token}", deliveries.HandleViewCard(store, storage))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	return r
}

func waitForShutdown(srv *http.Server, fonts *render.FontLibrary) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-signalC

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
	if err := fonts.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to release font resources")
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.InitAuth()
	store := stores.GetStore()
	storage := assets.GetStorage()

	fontDir := os.Getenv("FONT_DIR")
	if fontDir == "" {
		fontDir = "./fonts"
	}
	fonts, err := render.LoadFonts(fontDir)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load fonts")
	}

	exporter := export.NewExporter(storage, store, render.NewFaceRenderer(fonts))

	r := setupRouter(store, storage, exporter)

	srv := &http.Server{
		Addr:    *listenAddress,
		Handler: r,
	}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv, fonts)
}
