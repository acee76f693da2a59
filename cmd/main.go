package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"

	"book-catalog/configs"
	"book-catalog/internal/daemon"
	"book-catalog/internal/db"
	"book-catalog/internal/handlers"
	"book-catalog/internal/middleware"
	"book-catalog/internal/storage"
	"book-catalog/internal/utils"
)

func main() {
	cfg := configs.LoadConfig()
	db.Connect(cfg.MongoURI)

	bookColl := db.GetCollection(cfg.DBName, "books")
	if err := db.EnsureBookIndexes(bookColl); err != nil {
		log.Printf("Index creation failed: %v", err)
	}

	auditColl := db.GetCollection(cfg.DBName, "audit_logs")
	auditLogger := utils.Logger{Collection: auditColl}

	store := storage.NewStore(cfg.ContentDir)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	})

	bookHandler := handlers.NewBookHandler(bookColl, store, auditLogger)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/books", bookHandler.ListBooks).Methods("GET")
	api.HandleFunc("/books", bookHandler.AddBook).Methods("POST")
	api.HandleFunc("/books/{id}", bookHandler.UpdateBook).Methods("PUT")
	api.HandleFunc("/books/{id}", bookHandler.DeleteBook).Methods("DELETE")
	api.HandleFunc("/books/{id}/download", bookHandler.DownloadBook).Methods("GET")

	statsHandler := handlers.StatsHandler{BookCol: bookColl}
	api.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")

	exporter := daemon.LogExporter{Coll: auditColl}
	exporter.InitLogExporter()

	var server = http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.CORS(r),
	}

	go func() {
		log.Println("Server starting on port", cfg.Port)
		log.Fatal(server.ListenAndServe())
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Println("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Graceful shutdown failed: %v", err)
	}
	log.Println("Server shut down.")
}
