package routes

import (
	"database/sql"

	"github.com/gorilla/mux"

	"echothoughts.com/echothoughts/handlers"
)

func CreateSiteRoutes(db *sql.DB, router *mux.Router) *mux.Router {
	router.HandleFunc("/", handlers.Home(db)).Methods("GET")
	router.HandleFunc("/about", handlers.About(db)).Methods("GET")
	router.HandleFunc("/contact", handlers.Contact(db)).Methods("GET", "POST")
	router.HandleFunc("/search", handlers.Search(db)).Methods("GET")
	router.HandleFunc("/signup", handlers.SignUp(db)).Methods("POST")
	router.HandleFunc("/login", handlers.Login(db)).Methods("POST")
	router.HandleFunc("/logout", handlers.Logout()).Methods("GET")

	return router
}
