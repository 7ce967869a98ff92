package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"echothoughts.com/echothoughts/database"
	"echothoughts.com/echothoughts/handlers"
	"echothoughts.com/echothoughts/logging"
	"echothoughts.com/echothoughts/render"
	"echothoughts.com/echothoughts/routes"
	"echothoughts.com/echothoughts/session"
)

func main() {
	// .env is optional; real environment variables win either way.
	_ = godotenv.Load()

	logging.Init(os.Getenv("LOG_LEVEL"))

	secret := os.Getenv("SESSION_KEY")
	if secret == "" {
		logging.L.Fatal().Msg("SESSION_KEY not set")
	}
	session.Init([]byte(secret))

	if err := render.Init(); err != nil {
		logging.L.Fatal().Err(err).Msg("parse templates")
	}

	db, err := database.ConnectDB()
	if err != nil {
		logging.L.Fatal().Err(err).Msg("DB connection failed")
	}
	defer db.Close()

	router := mux.NewRouter()
	routes.CreateSiteRoutes(db, router)
	routes.CreateBlogRoutes(db, router)

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      handlers.RequestLogger(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logging.L.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.L.Error().Err(err).Msg("shutdown")
	}
	logging.L.Info().Msg("server stopped")
}
