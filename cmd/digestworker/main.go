package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow-api/mailer"
	"taskflow-api/storage"
)

const defaultFromAddress = "Taskflow <onboarding@resend.dev>"

func main() {
	_ = godotenv.Load()
	log.Info("digest worker starting")

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

	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		log.Fatal("RESEND_API_KEY must be set")
	}
	from := os.Getenv("RESEND_FROM_EMAIL")
	if from == "" {
		from = defaultFromAddress
	}

	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		opts, err := redis.ParseURL(redisConn)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc = redis.NewClient(opts)
	}

	proc := &processor{
		store: store,
		mail:  mailer.NewResend(apiKey),
		redis: rc,
		from:  from,
	}

	ctx := context.Background()
	for {
		msg, err := store.DequeueDigest(ctx)
		if err != nil {
			log.Errorf("dequeue: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			time.Sleep(time.Second)
			continue
		}
		if err := proc.Process(ctx, msg.Request, time.Now()); err != nil {
			// Leave the message for redelivery after the visibility timeout.
			log.WithError(err).WithField("owner", msg.Request.OwnerID).Error("digest failed")
			continue
		}
		if err := store.AckDigest(ctx, msg); err != nil {
			log.Errorf("ack: %v", err)
		}
	}
}
