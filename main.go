package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"pixelfeed/auth"
	"pixelfeed/cascade"
	"pixelfeed/counters"
	"pixelfeed/db"
	"pixelfeed/feed"
	"pixelfeed/media"
	"pixelfeed/mq"
	"pixelfeed/profile"
	"pixelfeed/ratelim"
	"pixelfeed/rdx"
	"pixelfeed/routes"
	"pixelfeed/session"
	"pixelfeed/store"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		duration := time.Since(start)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, duration)
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

// newStore picks the backing store. STORE=memory runs fully
// in-process; anything else uses MongoDB.
func newStore() store.EntityStore {
	if os.Getenv("STORE") == "memory" {
		log.Println("Using in-memory store")
		return store.NewMemory()
	}
	db.Init()
	return store.NewMongo()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	} else if port[0] != ':' {
		port = ":" + port
	}

	st := newStore()
	rdx.Init()
	go mq.StartActivityWorker()

	sessions := session.NewProvider()
	engine, err := feed.NewEngine(st)
	if err != nil {
		log.Fatalf("Failed to start feed engine: %v", err)
	}
	coordinator := cascade.New(st)
	toggles := counters.New(st)
	aggregator := profile.NewAggregator(engine, st)

	hub := feed.NewHub(engine)
	go hub.Run()

	rateLimiter := ratelim.NewRateLimiter()

	router := httprouter.New()
	router.GET("/health", Index)
	routes.AddStaticRoutes(router)
	routes.AddAuthRoutes(router, &auth.Handlers{Store: st, Sessions: sessions}, rateLimiter)
	routes.AddFeedRoutes(router, &feed.Handlers{Engine: engine, Cascade: coordinator}, rateLimiter)
	routes.AddCounterRoutes(router, &counters.Handlers{Counters: toggles})
	routes.AddProfileRoutes(router, &profile.Handlers{Agg: aggregator, Store: st})
	routes.AddMediaRoutes(router, &media.Handlers{Uploader: media.NewUploader()}, rateLimiter)
	routes.AddStreamRoutes(router, hub)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("Shutting down stream hub...")
		hub.Stop()
		engine.Close()
	})

	go func() {
		log.Printf("Server listening on %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutdown signal received; shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server stopped cleanly")
}
