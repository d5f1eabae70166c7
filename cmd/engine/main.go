package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/storefront-cart/internal/api"
	"github.com/example/storefront-cart/internal/bus"
	"github.com/example/storefront-cart/internal/cartsync"
	"github.com/example/storefront-cart/internal/config"
	"github.com/example/storefront-cart/internal/coupon"
	"github.com/example/storefront-cart/internal/discount"
	"github.com/example/storefront-cart/internal/relay"
	"github.com/example/storefront-cart/internal/session"
	"github.com/example/storefront-cart/internal/storage"
	"github.com/example/storefront-cart/internal/upstream"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Engine] Failed to load configuration: %v", err)
	}

	log.Println("[Engine] ========================================")
	log.Println("[Engine] Storefront Cart Engine")
	log.Println("[Engine] ========================================")
	log.Printf("[Engine] Store backend: %s", cfg.StoreBackend)
	log.Printf("[Engine] Upstream: %s", cfg.UpstreamURL)

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[Engine] Failed to initialize store: %v", err)
	}
	defer cleanup()

	var verifier *session.Verifier
	if cfg.JWTSecret != "" {
		verifier = session.NewVerifier(cfg.JWTSecret)
	} else {
		log.Println("[Engine] No JWT secret configured, all sessions are guests")
	}

	eventBus := bus.New()
	client := upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout)
	syncSvc := cartsync.NewService(store, eventBus, client)
	discountSvc := discount.NewService(store, eventBus, client)
	searcher := coupon.NewSearcher(client.SearchCoupons, cfg.SearchDebounce)

	// Optional Kafka tap for downstream consumers.
	if len(cfg.KafkaBrokers) > 0 {
		tap := relay.New(cfg.KafkaBrokers, cfg.KafkaTopic, eventBus)
		defer tap.Close()
		go func() {
			log.Printf("[Engine] Relaying events to Kafka %v topic %s", cfg.KafkaBrokers, cfg.KafkaTopic)
			if err := tap.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[Engine] Relay stopped: %v", err)
			}
		}()
	}

	handlers := api.NewHandlers(store, syncSvc, discountSvc, client, searcher)
	router := api.NewRouter(handlers, verifier)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		log.Printf("[Engine] Server started on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[Engine] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Engine] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}

// buildStore selects the persistence backend from configuration.
func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return storage.NewMemoryStore(), func() {}, nil

	case "file":
		log.Printf("[Engine] Cart file: %s", cfg.StorePath)
		return storage.NewFileStore(cfg.StorePath), func() {}, nil

	case "postgres":
		db, err := storage.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(db, cfg.CartID)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Println("[Engine] Connected to PostgreSQL")
		return store, func() { db.Close() }, nil

	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg)
		log.Printf("[Engine] Using DynamoDB table %s", cfg.DynamoTable)
		return storage.NewDynamoStore(client, cfg.DynamoTable, cfg.CartID), func() {}, nil

	default:
		log.Printf("[Engine] Unknown store backend %q, falling back to memory", cfg.StoreBackend)
		return storage.NewMemoryStore(), func() {}, nil
	}
}
