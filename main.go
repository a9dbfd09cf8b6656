package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskflow-api/api"
	"taskflow-api/mailer"
	"taskflow-api/storage"
)

const defaultFromAddress = "Taskflow <onboarding@resend.dev>"

func main() {
	_ = godotenv.Load()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTableName := os.Getenv("TASKS_TABLE")
	ownersTableName := os.Getenv("OWNERS_TABLE")
	digestQueueName := os.Getenv("DIGEST_QUEUE")
	if connStr == "" || tasksTableName == "" || ownersTableName == "" || digestQueueName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, tasksTableName, ownersTableName, digestQueueName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc = redis.NewClient(redisOptions(redisConn))
	} else {
		log.Warn("REDIS_CONNECTION_STRING not set, reminder summaries are uncached")
	}
	cacheTTL := time.Minute
	if v := os.Getenv("REMINDER_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid REMINDER_CACHE_TTL: %q", v)
		}
		cacheTTL = d
	}
	cache := api.NewSummaryCache(rc, cacheTTL)

	auth := buildAuth()

	otel.SetTracerProvider(sdktrace.NewTracerProvider())

	var mail mailer.Mailer
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		mail = mailer.NewResend(key)
	}
	from := os.Getenv("RESEND_FROM_EMAIL")
	if from == "" {
		from = defaultFromAddress
	}
	digestCfg := api.DigestConfig{
		Secret:    os.Getenv("CRON_SECRET"),
		Recipient: os.Getenv("REMINDER_EMAIL"),
		From:      from,
	}

	e := echo.New()
	e.JSONSerializer = &api.SonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Cron-Secret"},
	}))
	e.Use(echoprometheus.NewMiddleware("taskflow"))
	e.GET("/metrics", echoprometheus.NewHandler())

	logger := log.New()
	api.Register(e, store, auth, cache, mail, digestCfg, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

func buildAuth() *api.Auth {
	if os.Getenv("AUTH0_TEST_MODE") == "1" {
		secret := os.Getenv("TEST_JWT_SECRET")
		if secret == "" {
			log.Fatal("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1")
		}
		auth := api.NewTestAuth([]byte(secret), os.Getenv("AUTH0_AUDIENCE"), os.Getenv("AUTH0_ISSUER"))
		if os.Getenv("E2E_AUTH_BYPASS") == "1" {
			// End-to-end suites run without a login flow and act as a
			// well-known fixture user.
			auth = auth.WithBypass("e2e-user@taskflow.local", "E2E User")
		}
		return auth
	}

	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domain == "" {
		log.Fatal("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
}

// redisOptions parses either a redis URL or the comma-separated
// host,key=value form Azure portals hand out.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
