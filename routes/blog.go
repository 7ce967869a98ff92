package routes

import (
	"database/sql"

	"github.com/gorilla/mux"

	"echothoughts.com/echothoughts/handlers"
)

func CreateBlogRoutes(db *sql.DB, router *mux.Router) *mux.Router {
	router.HandleFunc("/blog/create/", handlers.RequireLogin(db, handlers.CreatePost(db))).Methods("GET", "POST")
	router.HandleFunc("/blog/edit/{id:[0-9]+}/", handlers.RequireLogin(db, handlers.EditPost(db))).Methods("GET", "POST")
	router.HandleFunc("/blog/delete/{id:[0-9]+}/", handlers.RequireLogin(db, handlers.DeletePost(db))).Methods("POST")
	router.HandleFunc("/blog/postComment", handlers.RequireLogin(db, handlers.PostComment(db))).Methods("POST")
	router.HandleFunc("/blog/deleteComment/{id:[0-9]+}/", handlers.RequireLogin(db, handlers.DeleteComment(db))).Methods("POST")
	router.HandleFunc("/blog/like/{id:[0-9]+}/", handlers.RequireLogin(db, handlers.LikePost(db))).Methods("POST")
	router.HandleFunc("/blog/", handlers.BlogHome(db)).Methods("GET")
	router.HandleFunc("/blog/{slug}", handlers.BlogPost(db)).Methods("GET")

	return router
}
